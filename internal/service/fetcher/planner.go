package fetcher

import "github.com/vertextoedge/himawari-fetch/internal/domain"

// Plan decides how to bring a task's local files in line with a remote file
// of remoteSize bytes. Size equality is the only completion test:
//
//  1. final file of the remote size        -> already complete (final)
//  2. no temp file                         -> fresh
//  3. temp file of the remote size         -> already complete (temp)
//  4. temp file shorter than the remote    -> resume at temp size
//  5. temp file longer than the remote     -> restart
//
// A final file of the wrong size is ignored and will be overwritten.
func Plan(local domain.LocalState, remoteSize int64) domain.ResumePlan {
	switch {
	case local.FinalExists && local.FinalSize == remoteSize:
		return domain.CompleteFrom(domain.SourceFinal, remoteSize)
	case !local.TempExists:
		return domain.FreshPlan(remoteSize)
	case local.TempSize == remoteSize:
		return domain.CompleteFrom(domain.SourceTemp, remoteSize)
	case local.TempSize < remoteSize:
		return domain.ResumeAt(local.TempSize, remoteSize)
	default:
		return domain.RestartPlan(remoteSize)
	}
}
