package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/vertextoedge/himawari-fetch/internal/catalog"
)

// Completeness writes one row per slot with a cell per band
func Completeness(w io.Writer, r catalog.Report) {
	if len(r.Slots) == 0 {
		fmt.Fprintln(w, warningStyle.Render(symbolWarning+" no observation slots in range"))
		return
	}

	headers := []string{"Slot (UTC)"}
	for _, b := range r.Slots[0].Bands {
		headers = append(headers, b.Band)
	}
	t := newTable(headers...)

	for _, slot := range r.Slots {
		row := []string{slot.Time.Format("2006-01-02 15:04")}
		for _, b := range slot.Bands {
			row = append(row, bandCell(r, b))
		}
		t.Row(row...)
	}

	fmt.Fprintln(w, headerStyle.Render("Band completeness"))
	fmt.Fprintln(w, t.String())

	if missing := r.Missing(); missing > 0 {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("%s %d slot/band pair(s) incomplete", symbolWarning, missing)))
		return
	}
	fmt.Fprintln(w, successStyle.Render(symbolPass+" complete"))
}

func bandCell(r catalog.Report, b catalog.BandStatus) string {
	cell := strconv.Itoa(b.Files) + "/" + strconv.Itoa(r.ExpectedSegments)
	if b.Partial > 0 {
		cell += " (+" + strconv.Itoa(b.Partial) + " partial)"
	}
	if r.Complete(b) {
		return successStyle.Render(cell)
	}
	if b.Files == 0 && b.Partial == 0 {
		return errorStyle.Render(cell)
	}
	return warningStyle.Render(cell)
}
