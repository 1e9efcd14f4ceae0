package domain

import "time"

// FailedTask is a task that exhausted its attempts
type FailedTask struct {
	RemotePath string
	FinalPath  string
	Reason     FailureReason
	Error      string
}

// RunSummary is the aggregated result of one engine run
type RunSummary struct {
	RunID      string
	TotalTasks int
	Succeeded  int
	Skipped    int
	Failed     int

	// Attempts counts every attempt; Retries counts attempts after the first
	Attempts int
	Retries  int

	// TotalBytes is the number of bytes transferred during this run,
	// including bytes from attempts that later failed
	TotalBytes int64
	Elapsed    time.Duration

	Failures []FailedTask
}

// AverageThroughput returns bytes per second over the run's elapsed time
func (s RunSummary) AverageThroughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / s.Elapsed.Seconds()
}

// Complete returns true if every task succeeded or was skipped
func (s RunSummary) Complete() bool {
	return s.Failed == 0 && s.Succeeded+s.Skipped == s.TotalTasks
}
