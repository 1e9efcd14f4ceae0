package filesystem

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestManager_Inspect(t *testing.T) {
	m := newTestManager(t)
	final := filepath.Join(m.RootDir(), "2024", "01", "01", "00", "a.DAT.bz2")
	task := domain.NewDownloadTask("/jma/hsd/a.DAT.bz2", final, 100, "")

	state, err := m.Inspect(task)
	require.NoError(t, err)
	assert.Equal(t, domain.LocalState{}, state)

	require.NoError(t, m.EnsureDir(final))
	require.NoError(t, os.WriteFile(task.TempPath, make([]byte, 40), 0644))

	state, err = m.Inspect(task)
	require.NoError(t, err)
	assert.False(t, state.FinalExists)
	assert.True(t, state.TempExists)
	assert.Equal(t, int64(40), state.TempSize)

	require.NoError(t, os.WriteFile(final, make([]byte, 100), 0644))
	state, err = m.Inspect(task)
	require.NoError(t, err)
	assert.True(t, state.FinalExists)
	assert.Equal(t, int64(100), state.FinalSize)
}

func TestManager_InspectDirectory(t *testing.T) {
	m := newTestManager(t)
	final := filepath.Join(m.RootDir(), "dir")
	require.NoError(t, os.Mkdir(final, 0755))

	_, err := m.Inspect(domain.NewDownloadTask("/r", final, 1, ""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestManager_OpenTemp(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.RootDir(), "x.downloading")

	f, err := m.OpenTemp(path, true)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = m.OpenTemp(path, false)
	require.NoError(t, err)
	_, err = f.Write([]byte(" world"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	f, err = m.OpenTemp(path, true)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	size, err := m.FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestManager_Finalize(t *testing.T) {
	m := newTestManager(t)
	temp := filepath.Join(m.RootDir(), "f.downloading")
	final := filepath.Join(m.RootDir(), "f")
	require.NoError(t, os.WriteFile(temp, []byte("abc"), 0644))

	require.NoError(t, m.Finalize(temp, final))

	_, err := os.Stat(temp)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestManager_RemoveFileMissing(t *testing.T) {
	m := newTestManager(t)
	assert.NoError(t, m.RemoveFile(filepath.Join(m.RootDir(), "nope")))
}

func TestManager_CleanOldTempFiles(t *testing.T) {
	m := newTestManager(t)
	dir := filepath.Join(m.RootDir(), "2024", "01")
	require.NoError(t, os.MkdirAll(dir, 0755))

	old := filepath.Join(dir, "old.DAT.bz2.downloading")
	recent := filepath.Join(dir, "new.DAT.bz2.downloading")
	done := filepath.Join(dir, "done.DAT.bz2")
	for _, p := range []string{old, recent, done} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(done, past, past))

	count, err := m.CleanOldTempFiles(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, done)
}

func TestManager_CleanEmptyDirs(t *testing.T) {
	m := newTestManager(t)
	empty := filepath.Join(m.RootDir(), "2024", "01", "01")
	full := filepath.Join(m.RootDir(), "2024", "02")
	require.NoError(t, os.MkdirAll(empty, 0755))
	require.NoError(t, os.MkdirAll(full, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(full, "a"), []byte("x"), 0644))

	require.NoError(t, m.CleanEmptyDirs())

	assert.NoDirExists(t, filepath.Join(m.RootDir(), "2024", "01"))
	assert.DirExists(t, full)
	assert.DirExists(t, m.RootDir())
}

func TestManager_GetDiskUsage(t *testing.T) {
	m := newTestManager(t)
	usage, err := m.GetDiskUsage()
	require.NoError(t, err)
	assert.Greater(t, usage.Total, uint64(0))
	assert.LessOrEqual(t, usage.Free, usage.Total)
}
