package jobs

import "strings"

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending          Status = "pending"
	StatusValidating       Status = "validating"
	StatusQueued           Status = "queued"
	StatusProcessing       Status = "processing"
	StatusGeneratingImages Status = "generating_images"
	StatusGeneratingVideo  Status = "generating_video"
	StatusGeneratingAudio  Status = "generating_audio"
	StatusComposing        Status = "composing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusQueued,
	StatusProcessing,
	StatusGeneratingImages,
	StatusGeneratingVideo,
	StatusGeneratingAudio,
	StatusComposing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitionTable is the authoritative adjacency map of legal one-step
// transitions. Terminal statuses have no entry.
var transitionTable = map[Status][]Status{
	StatusPending:          {StatusValidating, StatusFailed, StatusCancelled},
	StatusValidating:       {StatusQueued, StatusFailed, StatusCancelled},
	StatusQueued:           {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:       {StatusGeneratingImages, StatusFailed, StatusCancelled},
	StatusGeneratingImages: {StatusGeneratingVideo, StatusFailed, StatusCancelled},
	StatusGeneratingVideo:  {StatusGeneratingAudio, StatusComposing, StatusFailed, StatusCancelled},
	StatusGeneratingAudio:  {StatusComposing, StatusFailed, StatusCancelled},
	StatusComposing:        {StatusCompleted, StatusFailed, StatusCancelled},
}

// baselineProgress is the progress value a status implies when the caller
// supplies none. Failure statuses keep the job's last progress.
var baselineProgress = map[Status]float64{
	StatusPending:          0,
	StatusValidating:       5,
	StatusQueued:           10,
	StatusProcessing:       15,
	StatusGeneratingImages: 25,
	StatusGeneratingVideo:  50,
	StatusGeneratingAudio:  70,
	StatusComposing:        85,
	StatusCompleted:        100,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is legal.
// Unknown statuses fail closed.
func CanTransition(from, to Status) bool {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextStates returns the set of statuses directly reachable from the given
// status. Terminal and unknown statuses yield nil.
func NextStates(from Status) []Status {
	next, ok := transitionTable[from]
	if !ok {
		return nil
	}
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	if _, known := statusSet[s]; !known {
		return false
	}
	_, hasNext := transitionTable[s]
	return !hasNext
}

// BaselineProgress returns the progress value implied by a status and whether
// the status carries one.
func BaselineProgress(status Status) (float64, bool) {
	value, ok := baselineProgress[status]
	return value, ok
}

// IsActive reports whether a status reflects a job that is still progressing.
func (s Status) IsActive() bool {
	_, known := statusSet[s]
	return known && !s.IsTerminal()
}
