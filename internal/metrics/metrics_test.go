package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
	"github.com/vertextoedge/himawari-fetch/internal/domain/event"
)

func attempt(n int, outcome domain.TransferOutcome, final bool) event.AttemptFinished {
	return event.NewAttemptFinished("run", domain.AttemptReport{
		Task:    domain.NewDownloadTask("/r/a", "/l/a", 10, ""),
		Worker:  1,
		Attempt: n,
		Outcome: outcome,
		Final:   final,
	})
}

func TestHandler_Attempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	h := NewHandler(m)

	ioErr := domain.NewTransferError(domain.ReasonIO, errors.New("reset"))
	plan := domain.ResumePlan{Kind: domain.PlanResume, Offset: 4, RemoteSize: 10}

	h.Handle(attempt(1, domain.Failed(ioErr, 4, 10, time.Second), false))
	h.Handle(attempt(2, domain.Succeeded(plan, 6, time.Second), true))
	h.Handle(attempt(0, domain.Failed(domain.ErrCanceled, 0, domain.UnknownSize, 0), true))

	expected := `# HELP himawari_attempts_total Transfer attempts by outcome status.
# TYPE himawari_attempts_total counter
himawari_attempts_total{status="failed"} 1
himawari_attempts_total{status="success"} 1
`
	if err := testutil.CollectAndCompare(m.Attempts, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected attempts metric: %v", err)
	}

	expectedTasks := `# HELP himawari_tasks_total Tasks that reached a final outcome, by status and failure reason.
# TYPE himawari_tasks_total counter
himawari_tasks_total{reason="",status="success"} 1
himawari_tasks_total{reason="canceled",status="failed"} 1
`
	if err := testutil.CollectAndCompare(m.Tasks, strings.NewReader(expectedTasks)); err != nil {
		t.Fatalf("unexpected tasks metric: %v", err)
	}

	if got := testutil.ToFloat64(m.Bytes); got != 10 {
		t.Errorf("bytes = %v, want 10", got)
	}
	if got := testutil.CollectAndCount(m.AttemptSeconds); got != 1 {
		t.Errorf("histogram series = %d, want 1", got)
	}
}

func TestHandler_Workers(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := NewHandler(m)

	h.Handle(event.NewWorkerStarted("run", 1, 5))
	h.Handle(event.NewWorkerStarted("run", 2, 5))
	h.Handle(event.NewWorkerFailed("run", 3, 5, domain.ErrSessionUnavailable))
	h.Handle(event.NewWorkerFinished("run", 1, time.Second, false))
	h.Handle(event.NewTempDiscarded("run", domain.NewDownloadTask("/r/a", "/l/a", 10, ""), 20, 10))
	h.Handle(event.NewRunFinished("run", domain.RunSummary{}))

	if got := testutil.ToFloat64(m.ActiveWorkers); got != 1 {
		t.Errorf("active workers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WorkerFailures); got != 1 {
		t.Errorf("worker failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TempDiscarded); got != 1 {
		t.Errorf("temp discarded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Runs); got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	New(reg)
}

func TestNew_WithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Runs.Inc()
	if got := testutil.ToFloat64(m.Runs); got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
}
