package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		scriptFile    string
		imageModel    string
		videoModel    string
		resolution    string
		durationSecs  int
		noVoice       bool
		voiceRequired bool
		noMusic       bool
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:   "submit [script]",
		Short: "Submit a script for video generation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := resolveScript(args, scriptFile)
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				genCfg := jobs.GenerationConfig{
					Script:        script,
					ImageModel:    imageModel,
					VideoModel:    videoModel,
					Resolution:    resolution,
					DurationSecs:  durationSecs,
					VoiceEnabled:  cfg.Stages.VoiceEnabled && !noVoice,
					VoiceRequired: cfg.Stages.VoiceRequired,
					MusicEnabled:  cfg.Stages.MusicEnabled && !noMusic,
				}
				if voiceRequired {
					genCfg.VoiceEnabled = true
					genCfg.VoiceRequired = true
				}
				if genCfg.VoiceRequired && !genCfg.VoiceEnabled {
					genCfg.VoiceRequired = false
				}
				if err := genCfg.Validate(); err != nil {
					return err
				}

				configJSON, err := jobs.EncodeConfig(genCfg)
				if err != nil {
					return err
				}
				job, err := store.Create(cmd.Context(), uuid.NewString(), configJSON)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"job_id": job.ID,
						"status": string(job.Status),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", job.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Voice: %s  Music: %s\n",
					yesNo(genCfg.VoiceEnabled), yesNo(genCfg.MusicEnabled))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&scriptFile, "file", "f", "", "Read the script from a file")
	cmd.Flags().StringVar(&imageModel, "image-model", "", "Image model override")
	cmd.Flags().StringVar(&videoModel, "video-model", "", "Video model override")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Output resolution (e.g. 1920x1080)")
	cmd.Flags().IntVarP(&durationSecs, "duration", "d", 0, "Target duration in seconds")
	cmd.Flags().BoolVar(&noVoice, "no-voice", false, "Disable voice narration")
	cmd.Flags().BoolVar(&voiceRequired, "voice-required", false, "Fail the job if narration cannot be produced")
	cmd.Flags().BoolVar(&noMusic, "no-music", false, "Disable background music")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func resolveScript(args []string, scriptFile string) (string, error) {
	if scriptFile != "" {
		data, err := os.ReadFile(scriptFile)
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	return "", fmt.Errorf("a script argument or --file is required")
}
