package domain

import "fmt"

// PlanKind is the decision taken before an attempt starts
type PlanKind int

const (
	// PlanNone marks an attempt that failed before a plan was made
	PlanNone PlanKind = iota
	// PlanFresh starts at offset 0 with a new temp file
	PlanFresh
	// PlanResume appends to the temp file from its current size
	PlanResume
	// PlanAlreadyComplete needs no transfer
	PlanAlreadyComplete
	// PlanRestart discards a temp file larger than the remote file
	PlanRestart
)

// String returns the plan name used in logs and the journal; PlanNone is empty
func (k PlanKind) String() string {
	switch k {
	case PlanNone:
		return ""
	case PlanFresh:
		return "fresh"
	case PlanResume:
		return "resume"
	case PlanAlreadyComplete:
		return "already_complete"
	case PlanRestart:
		return "restart"
	default:
		return fmt.Sprintf("plan(%d)", int(k))
	}
}

// PlanSource tells which local file satisfied an AlreadyComplete plan
type PlanSource int

const (
	SourceNone PlanSource = iota
	SourceFinal
	SourceTemp
)

// ResumePlan is computed per task per attempt
type ResumePlan struct {
	Kind       PlanKind
	Offset     int64
	RemoteSize int64
	Source     PlanSource
}

// FreshPlan returns a plan that starts from byte 0
func FreshPlan(remoteSize int64) ResumePlan {
	return ResumePlan{Kind: PlanFresh, RemoteSize: remoteSize}
}

// ResumeAt returns a plan that continues from offset
func ResumeAt(offset, remoteSize int64) ResumePlan {
	return ResumePlan{Kind: PlanResume, Offset: offset, RemoteSize: remoteSize}
}

// CompleteFrom returns a plan that skips the transfer
func CompleteFrom(source PlanSource, remoteSize int64) ResumePlan {
	return ResumePlan{Kind: PlanAlreadyComplete, RemoteSize: remoteSize, Source: source}
}

// RestartPlan returns a plan that discards local data
func RestartPlan(remoteSize int64) ResumePlan {
	return ResumePlan{Kind: PlanRestart, RemoteSize: remoteSize}
}

// StartOffset returns the remote read position for this plan
func (p ResumePlan) StartOffset() int64 {
	if p.Kind == PlanResume {
		return p.Offset
	}
	return 0
}

// Truncates returns true if the temp file must be recreated
func (p ResumePlan) Truncates() bool {
	return p.Kind == PlanFresh || p.Kind == PlanRestart
}

// LocalState is what exists on disk for a task before an attempt
type LocalState struct {
	FinalExists bool
	FinalSize   int64
	TempExists  bool
	TempSize    int64
}
