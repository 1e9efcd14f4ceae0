package catalog

import (
	"fmt"
	"path"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// SlotInterval is the full-disk observation cadence
const SlotInterval = 10 * time.Minute

// DefaultRemoteRoot is where the server publishes HSD files
const DefaultRemoteRoot = "/jma/hsd"

// Slots returns every observation time between start and end, inclusive,
// in UTC. Bounds that fall between slots are rounded inwards.
func Slots(start, end time.Time) ([]time.Time, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", domain.ErrInvalidInput,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	first := start.Truncate(SlotInterval)
	if first.Before(start) {
		first = first.Add(SlotInterval)
	}

	var slots []time.Time
	for t := first; !t.After(end); t = t.Add(SlotInterval) {
		slots = append(slots, t)
	}
	return slots, nil
}

// RemoteDir returns the server directory holding the files of slot t:
// <root>/YYYYMM/DD/HH
func RemoteDir(root string, t time.Time) string {
	if root == "" {
		root = DefaultRemoteRoot
	}
	t = t.UTC()
	return path.Join(root, t.Format("200601"), t.Format("02"), t.Format("15"))
}
