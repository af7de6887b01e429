package synth

import (
	"context"
	"fmt"
	"log/slog"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// scoreManifest is the music stage's artifact: a background score cue sheet
// spanning the shot timeline.
type scoreManifest struct {
	JobID        string  `json:"job_id"`
	Mood         string  `json:"mood"`
	TempoBPM     int     `json:"tempo_bpm"`
	DurationSecs float64 `json:"duration_secs"`
}

// MusicComposer plans the background score from the shot timeline.
type MusicComposer struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewMusicComposer constructs the music stage handler.
func NewMusicComposer(ws *Workspace, logger *slog.Logger) *MusicComposer {
	return &MusicComposer{ws: ws, logger: logging.NewComponentLogger(logger, "music-composer")}
}

func (c *MusicComposer) Prepare(_ context.Context, req stage.Request) error {
	_, err := c.ws.EnsureJobDir(req.JobID)
	return err
}

func (c *MusicComposer) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return stage.Result{}, err
	}

	var timeline timelineManifest
	if err := c.ws.ReadArtifact(req.JobID, artifactTimeline, &timeline); err != nil {
		return stage.Result{}, err
	}

	path, err := c.ws.WriteArtifact(req.JobID, artifactScore, scoreManifest{
		JobID:        req.JobID,
		Mood:         "ambient",
		TempoBPM:     96,
		DurationSecs: timeline.TotalSecs,
	})
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, req.Kind.String(), "score", "", err)
	}

	c.logger.Debug("score written",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Float64("duration_secs", timeline.TotalSecs),
	)
	return stage.Result{
		ArtifactPath: path,
		Detail:       fmt.Sprintf("%.1fs score", timeline.TotalSecs),
	}, nil
}

func (c *MusicComposer) HealthCheck(context.Context) stage.Health {
	if err := c.ws.healthCheck("music-composer"); err != nil {
		return stage.Unhealthy("music-composer", err.Error())
	}
	return stage.Healthy("music-composer")
}
