package catalog

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Layout maps remote files to local paths
type Layout struct {
	BaseDir    string
	RemoteRoot string

	// OrganizeByTime stores files as <base>/YYYY/MM/DD/HH/<name>
	OrganizeByTime bool
	// KeepRemoteStructure mirrors the server tree below RemoteRoot and
	// takes precedence over OrganizeByTime
	KeepRemoteStructure bool

	TempSuffix string
}

// LocalPath returns where a remote file is stored. Names that do not parse
// as HSD files go directly under the base directory.
func (l Layout) LocalPath(remotePath string) string {
	name := path.Base(remotePath)

	if l.KeepRemoteStructure {
		root := l.RemoteRoot
		if root == "" {
			root = DefaultRemoteRoot
		}
		if rel, ok := strings.CutPrefix(path.Clean(remotePath), path.Clean(root)+"/"); ok {
			return filepath.Join(l.BaseDir, filepath.FromSlash(rel))
		}
	}

	if l.OrganizeByTime {
		if n, err := ParseName(name); err == nil {
			return filepath.Join(l.timeDir(n.Time), name)
		}
	}
	return filepath.Join(l.BaseDir, name)
}

// SlotDir returns the local directory that holds the files of slot t
func (l Layout) SlotDir(t time.Time) string {
	switch {
	case l.KeepRemoteStructure:
		root := l.RemoteRoot
		if root == "" {
			root = DefaultRemoteRoot
		}
		rel := strings.TrimPrefix(RemoteDir(root, t), path.Clean(root)+"/")
		return filepath.Join(l.BaseDir, filepath.FromSlash(rel))
	case l.OrganizeByTime:
		return l.timeDir(t)
	default:
		return l.BaseDir
	}
}

func (l Layout) timeDir(t time.Time) string {
	t = t.UTC()
	return filepath.Join(l.BaseDir, t.Format("2006"), t.Format("01"), t.Format("02"), t.Format("15"))
}

// Task builds the download task for a remote file
func (l Layout) Task(remotePath string, size int64) domain.DownloadTask {
	return domain.NewDownloadTask(remotePath, l.LocalPath(remotePath), size, l.TempSuffix)
}
