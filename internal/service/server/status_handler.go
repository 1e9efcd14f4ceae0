package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/port"
)

// StatusHandler serves the live run summary and the run history
type StatusHandler struct {
	live    LiveSource
	journal port.RunJournal
	logger  *zap.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(live LiveSource, journal port.RunJournal, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		live:    live,
		journal: journal,
		logger:  logger,
	}
}

type statusResponse struct {
	Running    bool    `json:"running"`
	RunID      string  `json:"run_id,omitempty"`
	TotalTasks int     `json:"total_tasks"`
	Succeeded  int     `json:"succeeded"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Attempts   int     `json:"attempts"`
	Bytes      int64   `json:"bytes"`
	ElapsedSec float64 `json:"elapsed_seconds"`
	Throughput float64 `json:"bytes_per_second"`
}

func newStatusResponse(s domain.RunSummary) statusResponse {
	done := s.Succeeded + s.Skipped + s.Failed
	return statusResponse{
		Running:    done < s.TotalTasks,
		RunID:      s.RunID,
		TotalTasks: s.TotalTasks,
		Succeeded:  s.Succeeded,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Attempts:   s.Attempts,
		Bytes:      s.TotalBytes,
		ElapsedSec: s.Elapsed.Seconds(),
		Throughput: s.AverageThroughput(),
	}
}

// HandleStatus handles live progress requests
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.live == nil {
		http.Error(w, "No engine attached", http.StatusNotFound)
		return
	}

	summary, ok := h.live.Live()
	if !ok {
		http.Error(w, "No run started", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newStatusResponse(summary))
}

// HandleRuns handles run history requests; ?limit=N bounds the list
func (h *StatusHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.journal == nil {
		http.Error(w, "Run journal disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.journal.ListRuns(r.Context(), limit)
	if err != nil {
		id, _ := RequestIDFrom(r.Context())
		h.logger.Error("failed to list runs", zap.String("request_id", id), zap.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []port.RunRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}
