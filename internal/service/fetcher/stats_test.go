package fetcher

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/himawari-fetch/internal/domain"
)

func sampleReports() []domain.AttemptReport {
	var reports []domain.AttemptReport
	for i := 0; i < 30; i++ {
		task := domain.NewDownloadTask(fmt.Sprintf("/r/%02d", i), fmt.Sprintf("/l/%02d", i), 100, "")
		plan := domain.FreshPlan(100)

		switch i % 3 {
		case 0:
			reports = append(reports, domain.AttemptReport{
				Task: task, Worker: i % 4, Attempt: 1, Final: true,
				Outcome: domain.Succeeded(plan, 100, time.Millisecond),
			})
		case 1:
			reports = append(reports, domain.AttemptReport{
				Task: task, Worker: i % 4, Attempt: 1, Final: true,
				Outcome: domain.Skipped(domain.CompleteFrom(domain.SourceFinal, 100), 0),
			})
		default:
			reports = append(reports,
				domain.AttemptReport{
					Task: task, Worker: i % 4, Attempt: 1,
					Outcome: domain.Failed(errors.New("reset"), 40, 100, time.Millisecond),
				},
				domain.AttemptReport{
					Task: task, Worker: i % 4, Attempt: 2, Final: true,
					Outcome: domain.Failed(domain.ErrSizeMismatch, 60, 100, time.Millisecond),
				},
			)
		}
	}
	return reports
}

func TestAggregator_Totals(t *testing.T) {
	a := NewAggregator(30)
	for _, r := range sampleReports() {
		a.Record(r)
	}
	a.RecordWorker(3 * time.Second)
	a.RecordWorker(5 * time.Second)
	a.RecordWorker(time.Second)

	s := a.Snapshot()
	assert.Equal(t, 30, s.TotalTasks)
	assert.Equal(t, 10, s.Succeeded)
	assert.Equal(t, 10, s.Skipped)
	assert.Equal(t, 10, s.Failed)
	assert.Equal(t, 40, s.Attempts)
	assert.Equal(t, 10, s.Retries)
	assert.Equal(t, int64(10*100+10*(40+60)), s.TotalBytes)
	assert.Equal(t, 5*time.Second, s.Elapsed)
	assert.Equal(t, s.Succeeded+s.Skipped+s.Failed, s.TotalTasks)

	require.Len(t, s.Failures, 10)
	assert.Equal(t, "/r/02", s.Failures[0].RemotePath)
	assert.Equal(t, domain.ReasonSizeMismatch, s.Failures[0].Reason)
}

func TestAggregator_NotStartedCountsNoAttempt(t *testing.T) {
	a := NewAggregator(1)
	a.Record(domain.AttemptReport{
		Task:    domain.NewDownloadTask("/r", "/l", 1, ""),
		Final:   true,
		Outcome: domain.Failed(domain.ErrCanceled, 0, domain.UnknownSize, 0),
	})

	s := a.Snapshot()
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Attempts)
	assert.Equal(t, domain.ReasonCanceled, s.Failures[0].Reason)
}

func TestAggregator_FoldIndependence(t *testing.T) {
	reports := sampleReports()

	reference := NewAggregator(30)
	for _, r := range reports {
		reference.Record(r)
	}
	want := reference.Snapshot()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.AttemptReport(nil), reports...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		a := NewAggregator(30)
		for _, r := range shuffled {
			a.Record(r)
		}
		assert.Equal(t, want, a.Snapshot(), "permutation %d", i)
	}
}

func TestAggregator_ConcurrentRecords(t *testing.T) {
	reports := sampleReports()
	a := NewAggregator(30)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i, r := range reports {
				if i%4 == w {
					a.Record(r)
				}
			}
		}(w)
	}
	wg.Wait()

	reference := NewAggregator(30)
	for _, r := range reports {
		reference.Record(r)
	}
	assert.Equal(t, reference.Snapshot(), a.Snapshot())
}

func TestAggregator_Live(t *testing.T) {
	a := NewAggregator(2)
	time.Sleep(5 * time.Millisecond)

	live := a.Live()
	assert.Greater(t, live.Elapsed, time.Duration(0))
	assert.Equal(t, time.Duration(0), a.Snapshot().Elapsed)
}
