package fetcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

func makeTasks(m int) []domain.DownloadTask {
	tasks := make([]domain.DownloadTask, m)
	for i := range tasks {
		name := fmt.Sprintf("f%03d.DAT.bz2", i)
		tasks[i] = domain.NewDownloadTask("/r/"+name, "/l/"+name, int64(i), "")
	}
	return tasks
}

func TestPartition_Sizes(t *testing.T) {
	tests := []struct {
		name string
		m, n int
		want []int
	}{
		{name: "even split", m: 18, n: 3, want: []int{6, 6, 6}},
		{name: "remainder goes first", m: 10, n: 3, want: []int{4, 3, 3}},
		{name: "fewer tasks than workers", m: 2, n: 5, want: []int{1, 1, 0, 0, 0}},
		{name: "no tasks", m: 0, n: 2, want: []int{0, 0}},
		{name: "single worker", m: 7, n: 1, want: []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slices, err := Partition(makeTasks(tt.m), tt.n)
			require.NoError(t, err)

			sizes := make([]int, len(slices))
			for i, s := range slices {
				sizes[i] = len(s)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestPartition_InvalidWorkerCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := Partition(makeTasks(3), n)
		assert.ErrorIs(t, err, domain.ErrInvalidWorkerCount)
	}
}

func TestPartition_Coverage(t *testing.T) {
	for m := 0; m <= 40; m++ {
		for n := 1; n <= 12; n++ {
			tasks := makeTasks(m)
			slices, err := Partition(tasks, n)
			require.NoError(t, err)
			require.Len(t, slices, n)

			var joined []domain.DownloadTask
			minSize, maxSize := m, 0
			for _, s := range slices {
				joined = append(joined, s...)
				minSize = min(minSize, len(s))
				maxSize = max(maxSize, len(s))
			}

			if m == 0 {
				assert.Empty(t, joined)
			} else {
				assert.Equal(t, tasks, joined, "m=%d n=%d", m, n)
			}
			assert.LessOrEqual(t, maxSize-minSize, 1, "m=%d n=%d", m, n)
		}
	}
}

func TestPartition_AppendDoesNotLeak(t *testing.T) {
	tasks := makeTasks(4)
	slices, err := Partition(tasks, 2)
	require.NoError(t, err)

	_ = append(slices[0], domain.DownloadTask{RemotePath: "/extra"})
	assert.Equal(t, tasks[2], slices[1][0])
}

func TestSources(t *testing.T) {
	tasks := makeTasks(3)

	s := NewSliceSource(tasks)
	assert.False(t, s.Shared())
	assert.Equal(t, 3, s.Len())

	q := NewQueueSource(tasks)
	assert.True(t, q.Shared())

	for i := 0; i < 3; i++ {
		got, ok := s.Next()
		require.True(t, ok)
		assert.Equal(t, tasks[i], got)

		got, ok = q.Next()
		require.True(t, ok)
		assert.Equal(t, tasks[i], got)
	}

	_, ok := s.Next()
	assert.False(t, ok)
	_, ok = q.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, q.Len())
}
