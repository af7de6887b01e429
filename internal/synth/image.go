package synth

import (
	"context"
	"fmt"
	"log/slog"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const defaultImageModel = "frame-painter-v2"

// storyboardManifest is the image stage's artifact: one keyframe prompt per
// scene, ready for the video stage to animate.
type storyboardManifest struct {
	JobID  string  `json:"job_id"`
	Model  string  `json:"model"`
	Scenes []Scene `json:"scenes"`
}

// ImageGenerator turns the submitted script into a storyboard of keyframe
// prompts. It also runs the moderation screen, since this is the first stage
// that touches the script content.
type ImageGenerator struct {
	ws     *Workspace
	logger *slog.Logger
}

// NewImageGenerator constructs the image stage handler.
func NewImageGenerator(ws *Workspace, logger *slog.Logger) *ImageGenerator {
	return &ImageGenerator{ws: ws, logger: logging.NewComponentLogger(logger, "image-generator")}
}

func (g *ImageGenerator) Prepare(_ context.Context, req stage.Request) error {
	if err := screenScript(req.Config.Script); err != nil {
		return err
	}
	_, err := g.ws.EnsureJobDir(req.JobID)
	return err
}

func (g *ImageGenerator) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	if err := ctx.Err(); err != nil {
		return stage.Result{}, err
	}

	scenes := splitScenes(req.Config.Script, req.Config.DurationSecs)
	if len(scenes) == 0 {
		return stage.Result{}, services.Wrap(services.ErrValidation, req.Kind.String(), "storyboard",
			"script produced no scenes", nil)
	}

	model := req.Config.ImageModel
	if model == "" {
		model = defaultImageModel
	}

	path, err := g.ws.WriteArtifact(req.JobID, artifactStoryboard, storyboardManifest{
		JobID:  req.JobID,
		Model:  model,
		Scenes: scenes,
	})
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, req.Kind.String(), "storyboard", "", err)
	}

	g.logger.Debug("storyboard written",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("scenes", len(scenes)),
	)
	return stage.Result{
		ArtifactPath: path,
		Detail:       fmt.Sprintf("%d scenes", len(scenes)),
	}, nil
}

func (g *ImageGenerator) HealthCheck(context.Context) stage.Health {
	if err := g.ws.healthCheck("image-generator"); err != nil {
		return stage.Unhealthy("image-generator", err.Error())
	}
	return stage.Healthy("image-generator")
}
