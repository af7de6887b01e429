package synth

import (
	"log/slog"

	"reelsmith/internal/config"
	"reelsmith/internal/stage"
)

// NewRegistry wires the built-in handlers for every pipeline stage over a
// workspace rooted at the configured staging directory.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*stage.Registry, error) {
	ws := NewWorkspace(cfg.Paths.StagingDir)
	return stage.NewRegistry(map[stage.Kind]stage.Handler{
		stage.KindImageGeneration: NewImageGenerator(ws, logger),
		stage.KindVideoGeneration: NewVideoGenerator(ws, logger),
		stage.KindVoiceSynthesis:  NewVoiceSynthesizer(ws, logger),
		stage.KindMusicSynthesis:  NewMusicComposer(ws, logger),
		stage.KindComposition:     NewComposer(ws, logger),
	})
}
