package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/adapter/filesystem"
	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
)

type executorFixture struct {
	server   *fakeServer
	session  *fakeSession
	fs       *filesystem.Manager
	exec     *Executor
	recorder *recordingHandler
}

func newExecutorFixture(t *testing.T, cfg ExecutorConfig) (*executorFixture, func(name string, size int64) domain.DownloadTask) {
	t.Helper()
	fsys := newTestFS(t)
	server := newFakeServer()
	dispatcher, recorder := newRecordingDispatcher()

	f := &executorFixture{
		server:   server,
		session:  newFakeSession(server),
		fs:       fsys,
		exec:     NewExecutor(fsys, dispatcher, zap.NewNop(), "run-1", cfg),
		recorder: recorder,
	}
	return f, func(name string, size int64) domain.DownloadTask {
		task := newTask(fsys, name, size)
		server.put(task.RemotePath, content(int(size)))
		return task
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestExecutor_Fresh(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{SinkBufferSize: 4096})
	task := add("a.DAT.bz2", 100_000)

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
	assert.Equal(t, domain.PlanFresh, out.Plan)
	assert.Equal(t, int64(100_000), out.Bytes)
	assert.Equal(t, int64(100_000), out.RemoteSize)
	assert.Equal(t, content(100_000), readFile(t, task.FinalPath))
	assert.NoFileExists(t, task.TempPath)
}

func TestExecutor_ResumeCorrectness(t *testing.T) {
	const size = 50_000
	for _, k := range []int{0, 1, 32 * 1024, size - 1} {
		f, add := newExecutorFixture(t, ExecutorConfig{})
		task := add("a.DAT.bz2", size)
		writeFile(t, task.TempPath, content(size)[:k])

		out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

		require.Equal(t, domain.StatusSuccess, out.Status, "k=%d: %s", k, out.ErrorMessage())
		assert.Equal(t, domain.PlanResume, out.Plan, "k=%d", k)
		assert.Equal(t, int64(size-k), out.Bytes, "k=%d", k)
		assert.Equal(t, content(size), readFile(t, task.FinalPath), "k=%d", k)
		assert.NoFileExists(t, task.TempPath)
	}
}

func TestExecutor_AlreadyCompleteFinal(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 1000)
	writeFile(t, task.FinalPath, content(1000))

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, domain.PlanAlreadyComplete, out.Plan)
	assert.Equal(t, int64(0), out.Bytes)
	assert.Equal(t, 0, f.server.openCount(task.RemotePath))
}

func TestExecutor_AlreadyCompleteFinalRemovesStaleTemp(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 1000)
	writeFile(t, task.FinalPath, content(1000))
	writeFile(t, task.TempPath, content(1000)[:300])

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, content(1000), readFile(t, task.FinalPath))
	assert.NoFileExists(t, task.TempPath)
	assert.Equal(t, 0, f.server.openCount(task.RemotePath))
}

func TestExecutor_AlreadyCompleteTemp(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 1000)
	writeFile(t, task.TempPath, content(1000))

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.StatusSkipped, out.Status)
	assert.Equal(t, int64(0), out.Bytes)
	assert.Equal(t, content(1000), readFile(t, task.FinalPath))
	assert.NoFileExists(t, task.TempPath)
	assert.Equal(t, 0, f.server.openCount(task.RemotePath))
}

func TestExecutor_Restart(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 1000)
	writeFile(t, task.TempPath, make([]byte, 1500))

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
	assert.Equal(t, domain.PlanRestart, out.Plan)
	assert.Equal(t, int64(1000), out.Bytes)
	assert.Equal(t, content(1000), readFile(t, task.FinalPath))

	discarded := f.recorder.named(event.NameTempDiscarded)
	require.Len(t, discarded, 1)
	e := discarded[0].(event.TempDiscarded)
	assert.Equal(t, int64(1500), e.TempSize)
	assert.Equal(t, int64(1000), e.RemoteSize)
	assert.Equal(t, "run-1", e.RunID)
}

func TestExecutor_FinalWrongSizeIsReplaced(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 1000)
	writeFile(t, task.FinalPath, make([]byte, 10))

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
	assert.Equal(t, content(1000), readFile(t, task.FinalPath))
}

func TestExecutor_Idempotent(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 5000)

	first := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)
	require.Equal(t, domain.StatusSuccess, first.Status)

	second := f.exec.Execute(context.Background(), f.session, task, first.RemoteSize)
	assert.Equal(t, domain.StatusSkipped, second.Status)
	assert.Equal(t, int64(0), second.Bytes)
	assert.Equal(t, 1, f.server.openCount(task.RemotePath))
}

func TestExecutor_RemoteMissing(t *testing.T) {
	f, _ := newExecutorFixture(t, ExecutorConfig{})
	task := newTask(f.fs, "missing.DAT.bz2", domain.UnknownSize)

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, domain.ReasonStat, out.Reason)
	assert.Equal(t, domain.UnknownSize, out.RemoteSize)
	assert.Equal(t, domain.PlanNone, out.Plan)
}

func TestExecutor_SessionLostOnStat(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 10)
	f.server.lost[task.RemotePath] = 1

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.ReasonSessionUnavailable, out.Reason)
	assert.True(t, domain.IsSessionFatal(out.Err))
}

func TestExecutor_ReadErrorKeepsPartialData(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 10_000)
	f.server.readFails[task.RemotePath] = 1

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, domain.ReasonIO, out.Reason)
	assert.Equal(t, domain.PlanFresh, out.Plan)
	assert.Equal(t, int64(5_000), out.Bytes)
	assert.Equal(t, content(10_000)[:5_000], readFile(t, task.TempPath))
	assert.NoFileExists(t, task.FinalPath)

	retry := f.exec.Execute(context.Background(), f.session, task, out.RemoteSize)

	require.Equal(t, domain.StatusSuccess, retry.Status, retry.ErrorMessage())
	assert.Equal(t, domain.PlanResume, retry.Plan)
	assert.Equal(t, int64(5_000), retry.Bytes)
	assert.Equal(t, content(10_000), readFile(t, task.FinalPath))
}

func TestExecutor_SizeMismatch(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 800)
	f.server.statSize[task.RemotePath] = 1000

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	assert.Equal(t, domain.ReasonSizeMismatch, out.Reason)
	assert.ErrorIs(t, out.Err, domain.ErrSizeMismatch)
	assert.Equal(t, domain.PlanFresh, out.Plan)
	assert.Equal(t, int64(800), out.Bytes)
	assert.FileExists(t, task.TempPath)
	assert.NoFileExists(t, task.FinalPath)
}

func TestExecutor_RemoteChanged(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 800)
	f.server.statSize[task.RemotePath] = 1000

	out := f.exec.Execute(context.Background(), f.session, task, 900)

	assert.Equal(t, domain.ReasonRemoteChanged, out.Reason)
	assert.ErrorIs(t, out.Err, domain.ErrRemoteChanged)
}

func TestExecutor_CorruptionRecovery(t *testing.T) {
	const size = 4000
	cases := []struct {
		name string
		temp []byte
	}{
		{name: "shorter prefix", temp: content(size)[:1234]},
		{name: "exact size", temp: content(size)},
		{name: "oversized", temp: make([]byte, size+77)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, add := newExecutorFixture(t, ExecutorConfig{})
			task := add("a.DAT.bz2", size)
			writeFile(t, task.TempPath, tc.temp)

			out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

			assert.False(t, out.IsFailed(), out.ErrorMessage())
			assert.Equal(t, content(size), readFile(t, task.FinalPath))
			assert.NoFileExists(t, task.TempPath)
		})
	}
}

func TestExecutor_IgnoresRunCancellation(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("a.DAT.bz2", 3000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.exec.Execute(ctx, f.session, task, domain.UnknownSize)
	assert.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{AttemptTimeout: 50 * time.Millisecond})
	task := add("a.DAT.bz2", 3000)
	writeFile(t, task.TempPath, content(3000)[:1000])
	f.server.hang[task.RemotePath] = 1

	done := make(chan domain.TransferOutcome, 1)
	go func() {
		done <- f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)
	}()

	select {
	case out := <-done:
		assert.Equal(t, domain.ReasonIO, out.Reason)
		assert.Equal(t, domain.PlanResume, out.Plan)
		assert.Contains(t, out.ErrorMessage(), "timed out")
		assert.True(t, domain.IsSessionFatal(out.Err))
		assert.Equal(t, 1, f.session.abortCount())
		assert.Equal(t, content(3000)[:1000], readFile(t, task.TempPath))
	case <-time.After(5 * time.Second):
		t.Fatal("attempt did not time out")
	}
}

func TestExecutor_TimeoutNotReachedKeepsSession(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{AttemptTimeout: 5 * time.Second})
	task := add("a.DAT.bz2", 3000)

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
	assert.Equal(t, 0, f.session.abortCount())
}

func TestExecutor_ZeroByteFile(t *testing.T) {
	f, add := newExecutorFixture(t, ExecutorConfig{})
	task := add("empty.DAT.bz2", 0)

	out := f.exec.Execute(context.Background(), f.session, task, domain.UnknownSize)

	require.Equal(t, domain.StatusSuccess, out.Status, out.ErrorMessage())
	assert.Equal(t, int64(0), out.Bytes)
	assert.FileExists(t, task.FinalPath)
}
