package synth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// compositionManifest is the final artifact: the render plan binding video
// and whichever audio tracks the pipeline produced. Absent tracks are
// recorded as absent, not errors; a skipped optional stage simply leaves its
// slot empty.
type compositionManifest struct {
	JobID     string  `json:"job_id"`
	Timeline  string  `json:"timeline"`
	Narration string  `json:"narration,omitempty"`
	Score     string  `json:"score,omitempty"`
	TotalSecs float64 `json:"total_secs"`
}

// Composer assembles the final render plan from the upstream artifacts.
type Composer struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewComposer constructs the composition stage handler.
func NewComposer(ws *Workspace, logger *slog.Logger) *Composer {
	return &Composer{ws: ws, logger: logging.NewComponentLogger(logger, "composer")}
}

func (c *Composer) Prepare(_ context.Context, req stage.Request) error {
	_, err := c.ws.EnsureJobDir(req.JobID)
	return err
}

func (c *Composer) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return stage.Result{}, err
	}

	var timeline timelineManifest
	if err := c.ws.ReadArtifact(req.JobID, artifactTimeline, &timeline); err != nil {
		return stage.Result{}, err
	}

	manifest := compositionManifest{
		JobID:     req.JobID,
		Timeline:  c.ws.ArtifactPath(req.JobID, artifactTimeline),
		TotalSecs: timeline.TotalSecs,
	}
	if req.Config.VoiceEnabled {
		if path, ok := c.artifactIfPresent(req.JobID, artifactNarration); ok {
			manifest.Narration = path
		}
	}
	if req.Config.MusicEnabled {
		if path, ok := c.artifactIfPresent(req.JobID, artifactScore); ok {
			manifest.Score = path
		}
	}

	path, err := c.ws.WriteArtifact(req.JobID, artifactComposition, manifest)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, req.Kind.String(), "compose", "", err)
	}

	c.logger.Debug("composition written",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Bool("narration", manifest.Narration != ""),
		logging.Bool("score", manifest.Score != ""),
	)
	return stage.Result{
		ArtifactPath: path,
		Detail:       fmt.Sprintf("%.1fs final cut", timeline.TotalSecs),
	}, nil
}

func (c *Composer) artifactIfPresent(jobID, name string) (string, bool) {
	path := c.ws.ArtifactPath(jobID, name)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("artifact unreadable",
				logging.String(logging.FieldJobID, jobID),
				logging.String("artifact", name),
				logging.Error(err),
			)
		}
		return "", false
	}
	return path, true
}

func (c *Composer) HealthCheck(context.Context) stage.Health {
	if err := c.ws.healthCheck("composer"); err != nil {
		return stage.Unhealthy("composer", err.Error())
	}
	return stage.Healthy("composer")
}
