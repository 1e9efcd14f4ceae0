package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
)

const namespace = "himawari"

// Metrics holds the downloader collectors
type Metrics struct {
	Attempts       *prometheus.CounterVec
	Tasks          *prometheus.CounterVec
	Bytes          prometheus.Counter
	AttemptSeconds prometheus.Histogram
	TempDiscarded  prometheus.Counter
	WorkerFailures prometheus.Counter
	ActiveWorkers  prometheus.Gauge
	Runs           prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Transfer attempts by outcome status.",
			},
			[]string{"status"},
		),
		Tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Tasks that reached a final outcome, by status and failure reason.",
			},
			[]string{"status", "reason"},
		),
		Bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloaded_bytes_total",
				Help:      "Bytes written to temp files, including failed attempts.",
			},
		),
		AttemptSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of transfer attempts.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		TempDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "temp_discarded_total",
				Help:      "Temp files thrown away because they were larger than the remote file.",
			},
		),
		WorkerFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_failures_total",
				Help:      "Workers that stopped because their session could not be opened.",
			},
		),
		ActiveWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workers",
				Help:      "Workers currently holding a session.",
			},
		),
		Runs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed engine runs.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Attempts, m.Tasks, m.Bytes, m.AttemptSeconds,
			m.TempDiscarded, m.WorkerFailures, m.ActiveWorkers, m.Runs)
	}
	return m
}

// Handler feeds run events into the collectors
type Handler struct {
	m *Metrics
}

// NewHandler creates a new Handler
func NewHandler(m *Metrics) *Handler {
	return &Handler{m: m}
}

// Handle processes an event
func (h *Handler) Handle(e event.DomainEvent) error {
	switch ev := e.(type) {
	case event.AttemptFinished:
		r := ev.Report
		if r.Attempt > 0 {
			h.m.Attempts.WithLabelValues(string(r.Outcome.Status)).Inc()
			h.m.AttemptSeconds.Observe(r.Outcome.Duration.Seconds())
		}
		h.m.Bytes.Add(float64(r.Outcome.Bytes))
		if r.Final {
			h.m.Tasks.WithLabelValues(string(r.Outcome.Status), string(r.Outcome.Reason)).Inc()
		}
	case event.TempDiscarded:
		h.m.TempDiscarded.Inc()
	case event.WorkerStarted:
		h.m.ActiveWorkers.Inc()
	case event.WorkerFinished:
		h.m.ActiveWorkers.Dec()
	case event.WorkerFailed:
		h.m.WorkerFailures.Inc()
	case event.RunFinished:
		h.m.Runs.Inc()
	}
	return nil
}

// HandledEvents returns the event types this handler processes
func (h *Handler) HandledEvents() []string {
	return []string{
		event.NameAttemptFinished,
		event.NameTempDiscarded,
		event.NameWorkerStarted,
		event.NameWorkerFinished,
		event.NameWorkerFailed,
		event.NameRunFinished,
	}
}

var _ event.EventHandler = (*Handler)(nil)
