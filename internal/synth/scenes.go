package synth

import (
	"strings"
)

// Scene is one storyboard unit derived from the submitted script.
type Scene struct {
	Index        int     `json:"index"`
	Text         string  `json:"text"`
	DurationSecs float64 `json:"duration_secs"`
}

const defaultSceneDuration = 4.0

// splitScenes breaks a script into scenes, one per non-empty line or
// sentence-sized chunk, and divides the target duration evenly. A zero
// duration falls back to a fixed per-scene length.
func splitScenes(script string, durationSecs int) []Scene {
	var chunks []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunks = append(chunks, sentences(line)...)
	}
	if len(chunks) == 0 {
		return nil
	}

	perScene := defaultSceneDuration
	if durationSecs > 0 {
		perScene = float64(durationSecs) / float64(len(chunks))
	}

	scenes := make([]Scene, 0, len(chunks))
	for i, text := range chunks {
		scenes = append(scenes, Scene{Index: i, Text: text, DurationSecs: perScene})
	}
	return scenes
}

func sentences(line string) []string {
	var out []string
	var current strings.Builder
	for _, r := range line {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}
