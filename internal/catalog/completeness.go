package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// FullDiskSegments is the number of segment files per band for one
// full-disk observation
const FullDiskSegments = 10

// BandStatus is what is on disk for one band of one slot
type BandStatus struct {
	Band    string
	Files   int
	Bytes   int64
	Partial int // temp files still waiting to be resumed
}

// SlotReport lists the bands of one slot
type SlotReport struct {
	Time  time.Time
	Bands []BandStatus
}

// Report is a completeness check of a local tree against a query
type Report struct {
	Slots            []SlotReport
	ExpectedSegments int
}

// Complete returns true if a band has all of its segments
func (r Report) Complete(b BandStatus) bool {
	return b.Files >= r.ExpectedSegments
}

// Missing returns the number of slot/band pairs lacking segments
func (r Report) Missing() int {
	n := 0
	for _, slot := range r.Slots {
		for _, b := range slot.Bands {
			if !r.Complete(b) {
				n++
			}
		}
	}
	return n
}

// Completeness reports, for every slot and band of q, how many segment
// files the local tree holds
func Completeness(layout Layout, q Query) (Report, error) {
	slots, err := Slots(q.Start, q.End)
	if err != nil {
		return Report{}, err
	}

	bands := q.Bands
	if len(bands) == 0 {
		bands = AllBands()
	}

	report := Report{ExpectedSegments: FullDiskSegments}
	if q.area() != DefaultArea {
		report.ExpectedSegments = 1
	}

	suffix := layout.TempSuffix
	if suffix == "" {
		suffix = domain.DefaultTempSuffix
	}

	listings := make(map[string][]os.DirEntry)
	for _, slot := range slots {
		dir := layout.SlotDir(slot)
		entries, ok := listings[dir]
		if !ok {
			entries, err = os.ReadDir(dir)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return Report{}, fmt.Errorf("failed to read %s: %w", dir, err)
			}
			listings[dir] = entries
		}

		byBand := make(map[string]*BandStatus, len(bands))
		sr := SlotReport{Time: slot, Bands: make([]BandStatus, len(bands))}
		for i, band := range bands {
			sr.Bands[i].Band = band
			byBand[band] = &sr.Bands[i]
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			name, partial := entry.Name(), false
			if strings.HasSuffix(name, suffix) {
				name, partial = strings.TrimSuffix(name, suffix), true
			}

			n, err := ParseName(name)
			if err != nil || !q.matches(n, slot) {
				continue
			}
			status, ok := byBand[n.Band]
			if !ok {
				continue
			}

			if partial {
				status.Partial++
				continue
			}
			status.Files++
			if info, err := entry.Info(); err == nil {
				status.Bytes += info.Size()
			}
		}

		report.Slots = append(report.Slots, sr)
	}

	return report, nil
}
