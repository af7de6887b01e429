package synth

import (
	"context"
	"fmt"
	"log/slog"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const (
	defaultVideoModel = "motion-weaver-v1"
	defaultResolution = "1920x1080"
)

// shot is one animated segment in the video timeline.
type shot struct {
	SceneIndex   int     `json:"scene_index"`
	Prompt       string  `json:"prompt"`
	DurationSecs float64 `json:"duration_secs"`
}

// timelineManifest is the video stage's artifact: an ordered shot list
// animating the storyboard.
type timelineManifest struct {
	JobID      string  `json:"job_id"`
	Model      string  `json:"model"`
	Resolution string  `json:"resolution"`
	Shots      []shot  `json:"shots"`
	TotalSecs  float64 `json:"total_secs"`
}

// VideoGenerator animates the storyboard into a shot timeline.
type VideoGenerator struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewVideoGenerator constructs the video stage handler.
func NewVideoGenerator(ws *Workspace, logger *slog.Logger) *VideoGenerator {
	return &VideoGenerator{ws: ws, logger: logging.NewComponentLogger(logger, "video-generator")}
}

func (g *VideoGenerator) Prepare(_ context.Context, req stage.Request) error {
	_, err := g.ws.EnsureJobDir(req.JobID)
	return err
}

func (g *VideoGenerator) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return stage.Result{}, err
	}

	var storyboard storyboardManifest
	if err := g.ws.ReadArtifact(req.JobID, artifactStoryboard, &storyboard); err != nil {
		return stage.Result{}, err
	}

	model := req.Config.VideoModel
	if model == "" {
		model = defaultVideoModel
	}
	resolution := req.Config.Resolution
	if resolution == "" {
		resolution = defaultResolution
	}

	shots := make([]shot, 0, len(storyboard.Scenes))
	var total float64
	for _, scene := range storyboard.Scenes {
		shots = append(shots, shot{
			SceneIndex:   scene.Index,
			Prompt:       scene.Text,
			DurationSecs: scene.DurationSecs,
		})
		total += scene.DurationSecs
	}

	path, err := g.ws.WriteArtifact(req.JobID, artifactTimeline, timelineManifest{
		JobID:      req.JobID,
		Model:      model,
		Resolution: resolution,
		Shots:      shots,
		TotalSecs:  total,
	})
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, req.Kind.String(), "timeline", "", err)
	}

	g.logger.Debug("timeline written",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("shots", len(shots)),
	)
	return stage.Result{
		ArtifactPath: path,
		Detail:       fmt.Sprintf("%d shots, %.1fs", len(shots), total),
	}, nil
}

func (g *VideoGenerator) HealthCheck(context.Context) stage.Health {
	if err := g.ws.healthCheck("video-generator"); err != nil {
		return stage.Unhealthy("video-generator", err.Error())
	}
	return stage.Healthy("video-generator")
}
