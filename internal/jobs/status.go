package jobs

// Status represents the lifecycle state of a transcription job.
// These are wire-level values: clients match on them for progress
// rendering and reconciliation, so they must not change.
//
// Centralizing these here avoids scattering string literals like
// "queued" or "completed" across packages.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusLoadingModel Status = "loading_model"
	StatusConverting   Status = "converting"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
