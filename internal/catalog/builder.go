package catalog

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// DefaultArea is the full-disk observation area
const DefaultArea = "FLDK"

// Query selects files by time range, band and area
type Query struct {
	Start time.Time
	End   time.Time

	// Bands lists the wanted bands; empty selects all
	Bands []string
	// Area defaults to FLDK
	Area string
	// Satellite restricts to one satellite when set, e.g. H09
	Satellite string
}

func (q Query) area() string {
	if q.Area == "" {
		return DefaultArea
	}
	return q.Area
}

// matches reports whether a parsed name belongs to slot t of the query
func (q Query) matches(n Name, t time.Time) bool {
	if !n.Time.Equal(t) || n.Area != q.area() {
		return false
	}
	if q.Satellite != "" && n.Satellite != q.Satellite {
		return false
	}
	return len(q.Bands) == 0 || slices.Contains(q.Bands, n.Band)
}

// Builder turns a query into an ordered list of download tasks by listing
// the server directories of each slot
type Builder struct {
	layout Layout
	logger *zap.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(layout Layout, logger *zap.Logger) *Builder {
	if layout.RemoteRoot == "" {
		layout.RemoteRoot = DefaultRemoteRoot
	}
	return &Builder{layout: layout, logger: logger}
}

// Build lists the remote directory of every slot and returns the matching
// files in slot order, then by name. A directory that cannot be listed is
// skipped with a warning; a lost session aborts the build.
func (b *Builder) Build(ctx context.Context, lister port.DirLister, q Query) ([]domain.DownloadTask, error) {
	slots, err := Slots(q.Start, q.End)
	if err != nil {
		return nil, err
	}

	listings := make(map[string][]port.RemoteEntry)
	seen := make(map[string]bool)
	var tasks []domain.DownloadTask

	for _, slot := range slots {
		dir := RemoteDir(b.layout.RemoteRoot, slot)

		entries, ok := listings[dir]
		if !ok {
			entries, err = lister.ReadDir(ctx, dir)
			if err != nil {
				if ctx.Err() != nil || domain.IsSessionFatal(err) {
					return nil, fmt.Errorf("failed to list %s: %w", dir, err)
				}
				b.logger.Warn("failed to list remote directory, skipping",
					zap.String("dir", dir),
					zap.Error(err))
				entries = nil
			}
			slices.SortFunc(entries, func(x, y port.RemoteEntry) int {
				return strings.Compare(x.Name, y.Name)
			})
			listings[dir] = entries
		}

		found := 0
		for _, entry := range entries {
			if entry.IsDir {
				continue
			}
			n, err := ParseName(entry.Name)
			if err != nil || !q.matches(n, slot) {
				continue
			}

			remotePath := path.Join(dir, entry.Name)
			if seen[remotePath] {
				continue
			}
			seen[remotePath] = true

			tasks = append(tasks, b.layout.Task(remotePath, entry.Size))
			found++
		}

		b.logger.Debug("slot listed",
			zap.String("dir", dir),
			zap.Time("slot", slot),
			zap.Int("files", found))
	}

	return tasks, nil
}
