package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

// Summary writes the result of a run
func Summary(w io.Writer, s domain.RunSummary) {
	fmt.Fprintln(w, headerStyle.Render("Download summary"))

	t := newTable("Total", "Downloaded", "Skipped", "Failed", "Attempts", "Transferred", "Elapsed", "Rate").
		Row(
			strconv.Itoa(s.TotalTasks),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Attempts),
			Bytes(s.TotalBytes),
			s.Elapsed.Round(time.Millisecond).String(),
			Rate(s.AverageThroughput()),
		)
	fmt.Fprintln(w, t.String())

	if len(s.Failures) > 0 {
		ft := newTable("Remote path", "Reason", "Error")
		for _, f := range s.Failures {
			ft.Row(f.RemotePath, string(f.Reason), f.Error)
		}
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s %d task(s) failed", symbolFail, s.Failed)))
		fmt.Fprintln(w, ft.String())
		return
	}

	if s.Complete() {
		fmt.Fprintln(w, successStyle.Render(symbolPass+" all files present"))
	}
}

// Bytes formats a byte count, e.g. "1.2 MB"
func Bytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// Rate formats a throughput in bytes per second
func Rate(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bps)) + "/s"
}
