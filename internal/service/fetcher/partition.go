package fetcher

import (
	"fmt"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Partition splits tasks into n contiguous, order-preserving slices whose
// sizes differ by at most one. The first len(tasks)%n slices carry the extra
// task. When there are fewer tasks than slices the trailing slices are empty.
func Partition(tasks []domain.DownloadTask, n int) ([][]domain.DownloadTask, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidWorkerCount, n)
	}

	base := len(tasks) / n
	rem := len(tasks) % n

	slices := make([][]domain.DownloadTask, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		// full slice expression so appends never spill into a neighbour
		slices[i] = tasks[start : start+size : start+size]
		start += size
	}
	return slices, nil
}
