package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// narrationLine is one spoken segment aligned to a shot.
type narrationLine struct {
	SceneIndex int     `json:"scene_index"`
	Text       string  `json:"text"`
	StartSecs  float64 `json:"start_secs"`
}

// narrationManifest is the voice stage's artifact: the narration track
// aligned against the shot timeline.
type narrationManifest struct {
	JobID string          `json:"job_id"`
	Voice string          `json:"voice"`
	Lines []narrationLine `json:"lines"`
}

// VoiceSynthesizer plans the narration track from the shot timeline.
type VoiceSynthesizer struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewVoiceSynthesizer constructs the voice stage handler.
func NewVoiceSynthesizer(ws *Workspace, logger *slog.Logger) *VoiceSynthesizer {
	return &VoiceSynthesizer{ws: ws, logger: logging.NewComponentLogger(logger, "voice-synthesizer")}
}

func (s *VoiceSynthesizer) Prepare(_ context.Context, req stage.Request) error {
	_, err := s.ws.EnsureJobDir(req.JobID)
	return err
}

func (s *VoiceSynthesizer) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return stage.Result{}, err
	}

	var timeline timelineManifest
	if err := s.ws.ReadArtifact(req.JobID, artifactTimeline, &timeline); err != nil {
		return stage.Result{}, err
	}

	lines := make([]narrationLine, 0, len(timeline.Shots))
	var cursor float64
	for _, sh := range timeline.Shots {
		if text := strings.TrimSpace(sh.Prompt); text != "" {
			lines = append(lines, narrationLine{
				SceneIndex: sh.SceneIndex,
				Text:       text,
				StartSecs:  cursor,
			})
		}
		cursor += sh.DurationSecs
	}

	path, err := s.ws.WriteArtifact(req.JobID, artifactNarration, narrationManifest{
		JobID: req.JobID,
		Voice: "narrator-default",
		Lines: lines,
	})
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, req.Kind.String(), "narration", "", err)
	}

	s.logger.Debug("narration written",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("lines", len(lines)),
	)
	return stage.Result{
		ArtifactPath: path,
		Detail:       fmt.Sprintf("%d lines", len(lines)),
	}, nil
}

func (s *VoiceSynthesizer) HealthCheck(context.Context) stage.Health {
	if err := s.ws.healthCheck("voice-synthesizer"); err != nil {
		return stage.Unhealthy("voice-synthesizer", err.Error())
	}
	return stage.Healthy("voice-synthesizer")
}
