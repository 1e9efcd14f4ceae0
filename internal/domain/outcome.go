package domain

import "time"

// OutcomeStatus tags the result of one attempt
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// TransferOutcome is the immutable result of one attempt
type TransferOutcome struct {
	Status   OutcomeStatus
	Reason   FailureReason
	Err      error
	Bytes    int64
	Duration time.Duration

	// RemoteSize is the size seen by stat during this attempt, or UnknownSize
	RemoteSize int64
	// Plan is PlanNone when the attempt failed before planning
	Plan       PlanKind
}

// Succeeded builds a Success outcome
func Succeeded(plan ResumePlan, bytes int64, d time.Duration) TransferOutcome {
	return TransferOutcome{
		Status:     StatusSuccess,
		Bytes:      bytes,
		Duration:   d,
		RemoteSize: plan.RemoteSize,
		Plan:       plan.Kind,
	}
}

// Skipped builds a Skipped outcome
func Skipped(plan ResumePlan, d time.Duration) TransferOutcome {
	return TransferOutcome{
		Status:     StatusSkipped,
		Duration:   d,
		RemoteSize: plan.RemoteSize,
		Plan:       plan.Kind,
	}
}

// Failed builds a Failed outcome; the reason is taken from err
func Failed(err error, bytes int64, remoteSize int64, d time.Duration) TransferOutcome {
	return TransferOutcome{
		Status:     StatusFailed,
		Reason:     ReasonOf(err),
		Err:        err,
		Bytes:      bytes,
		Duration:   d,
		RemoteSize: remoteSize,
	}
}

// FailedDuring builds a Failed outcome for an attempt that already planned
func FailedDuring(plan ResumePlan, err error, bytes int64, d time.Duration) TransferOutcome {
	o := Failed(err, bytes, plan.RemoteSize, d)
	o.Plan = plan.Kind
	return o
}

// IsFailed returns true for a Failed outcome
func (o TransferOutcome) IsFailed() bool {
	return o.Status == StatusFailed
}

// ErrorMessage returns the error text or an empty string
func (o TransferOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// AttemptReport is one attempt as forwarded to the aggregator and event handlers
type AttemptReport struct {
	Task    DownloadTask
	Worker  int
	Attempt int
	Outcome TransferOutcome

	// Final is set on the last attempt for a task; only final reports count
	// toward succeeded/skipped/failed totals
	Final bool
}
