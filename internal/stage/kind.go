package stage

import (
	"strings"

	"reelsmith/internal/jobs"
)

// Kind identifies one unit of generation work in the pipeline.
type Kind string

const (
	KindImageGeneration Kind = "image_generation"
	KindVideoGeneration Kind = "video_generation"
	KindVoiceSynthesis  Kind = "voice_synthesis"
	KindMusicSynthesis  Kind = "music_synthesis"
	KindComposition     Kind = "composition"
)

var allKinds = []Kind{
	KindImageGeneration,
	KindVideoGeneration,
	KindVoiceSynthesis,
	KindMusicSynthesis,
	KindComposition,
}

// jobStatusByKind maps a running stage kind to the job status it implies.
var jobStatusByKind = map[Kind]jobs.Status{
	KindImageGeneration: jobs.StatusGeneratingImages,
	KindVideoGeneration: jobs.StatusGeneratingVideo,
	KindVoiceSynthesis:  jobs.StatusGeneratingAudio,
	KindMusicSynthesis:  jobs.StatusGeneratingAudio,
	KindComposition:     jobs.StatusComposing,
}

// rank orders kinds by pipeline depth so the most-advanced running stage
// decides the job status when stages run in parallel.
var rank = map[Kind]int{
	KindImageGeneration: 0,
	KindVideoGeneration: 1,
	KindVoiceSynthesis:  2,
	KindMusicSynthesis:  2,
	KindComposition:     3,
}

// AllKinds returns the ordered list of known stage kinds.
func AllKinds() []Kind {
	cp := make([]Kind, len(allKinds))
	copy(cp, allKinds)
	return cp
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// JobStatus returns the job status a running stage of this kind implies.
func (k Kind) JobStatus() (jobs.Status, bool) {
	status, ok := jobStatusByKind[k]
	return status, ok
}

// Rank returns the kind's pipeline depth. Deeper kinds win when choosing the
// job status among concurrently running stages.
func (k Kind) Rank() int {
	return rank[k]
}

func (k Kind) String() string {
	return string(k)
}
