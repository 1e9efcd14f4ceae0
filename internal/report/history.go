package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// History writes recorded runs, newest first
func History(w io.Writer, runs []port.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, infoStyle.Render("no runs recorded"))
		return
	}

	t := newTable("Run", "Started", "Workers", "Total", "OK", "Skipped", "Failed", "Transferred", "Elapsed")
	for _, r := range runs {
		status := successStyle.Render(symbolPass)
		switch {
		case r.FinishedAt.IsZero():
			status = warningStyle.Render(symbolWarning)
		case r.Failed > 0:
			status = errorStyle.Render(symbolFail)
		}

		t.Row(
			status+" "+shortID(r.ID),
			humanize.Time(r.StartedAt),
			strconv.Itoa(r.Workers),
			strconv.Itoa(r.TotalTasks),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			Bytes(r.Bytes),
			r.Elapsed.Round(time.Second).String(),
		)
	}

	fmt.Fprintln(w, headerStyle.Render("Run history"))
	fmt.Fprintln(w, t.String())
}

// Failures writes the failed tasks of one run
func Failures(w io.Writer, runID string, failures []port.FailureRecord) {
	if len(failures) == 0 {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("%s no failures in run %s", symbolPass, runID)))
		return
	}

	t := newTable("Remote path", "Reason", "Attempts", "Error")
	for _, f := range failures {
		t.Row(f.RemotePath, f.Reason, strconv.Itoa(f.Attempts), f.Error)
	}
	fmt.Fprintln(w, headerStyle.Render("Failures of run "+runID))
	fmt.Fprintln(w, t.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
