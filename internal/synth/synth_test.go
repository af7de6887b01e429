package synth

import (
	"context"
	"errors"
	"os"
	"testing"

	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

func testConfig() jobs.GenerationConfig {
	return jobs.GenerationConfig{
		Script:       "A lighthouse keeper greets the dawn. Waves break below.\nGulls wheel overhead.",
		DurationSecs: 12,
		VoiceEnabled: true,
		MusicEnabled: true,
	}
}

func runHandler(t *testing.T, handler stage.Handler, req stage.Request) stage.Result {
	t.Helper()
	ctx := context.Background()
	if err := handler.Prepare(ctx, req); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	result, err := handler.Execute(ctx, req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return result
}

func TestPipelineArtifactChain(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	logger := logging.NewNop()
	cfg := testConfig()
	const jobID = "job-1"

	imageResult := runHandler(t, NewImageGenerator(ws, logger), stage.Request{
		JobID: jobID, Kind: stage.KindImageGeneration, Config: cfg,
	})
	var storyboard storyboardManifest
	if err := ws.ReadArtifact(jobID, artifactStoryboard, &storyboard); err != nil {
		t.Fatalf("read storyboard: %v", err)
	}
	if len(storyboard.Scenes) != 3 {
		t.Fatalf("scenes = %d, want 3", len(storyboard.Scenes))
	}
	if imageResult.ArtifactPath != ws.ArtifactPath(jobID, artifactStoryboard) {
		t.Fatalf("artifact path = %s", imageResult.ArtifactPath)
	}

	runHandler(t, NewVideoGenerator(ws, logger), stage.Request{
		JobID: jobID, Kind: stage.KindVideoGeneration, Config: cfg,
	})
	var timeline timelineManifest
	if err := ws.ReadArtifact(jobID, artifactTimeline, &timeline); err != nil {
		t.Fatalf("read timeline: %v", err)
	}
	if len(timeline.Shots) != len(storyboard.Scenes) {
		t.Fatalf("shots = %d", len(timeline.Shots))
	}
	if timeline.TotalSecs != 12 {
		t.Fatalf("total secs = %v", timeline.TotalSecs)
	}
	if timeline.Resolution != defaultResolution {
		t.Fatalf("resolution = %s", timeline.Resolution)
	}

	runHandler(t, NewVoiceSynthesizer(ws, logger), stage.Request{
		JobID: jobID, Kind: stage.KindVoiceSynthesis, Config: cfg,
	})
	runHandler(t, NewMusicComposer(ws, logger), stage.Request{
		JobID: jobID, Kind: stage.KindMusicSynthesis, Config: cfg,
	})

	composeResult := runHandler(t, NewComposer(ws, logger), stage.Request{
		JobID: jobID, Kind: stage.KindComposition, Config: cfg,
	})
	var composition compositionManifest
	if err := ws.ReadArtifact(jobID, artifactComposition, &composition); err != nil {
		t.Fatalf("read composition: %v", err)
	}
	if composition.Narration == "" || composition.Score == "" {
		t.Fatalf("audio tracks missing: %+v", composition)
	}
	if composition.TotalSecs != 12 {
		t.Fatalf("composition total = %v", composition.TotalSecs)
	}
	if composeResult.ArtifactPath == "" {
		t.Fatal("composition artifact path empty")
	}
}

func TestCompositionToleratesMissingOptionalTracks(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	logger := logging.NewNop()
	cfg := testConfig()
	const jobID = "job-1"

	runHandler(t, NewImageGenerator(ws, logger), stage.Request{JobID: jobID, Kind: stage.KindImageGeneration, Config: cfg})
	runHandler(t, NewVideoGenerator(ws, logger), stage.Request{JobID: jobID, Kind: stage.KindVideoGeneration, Config: cfg})

	// Voice and music never ran (skipped); composition still succeeds.
	runHandler(t, NewComposer(ws, logger), stage.Request{JobID: jobID, Kind: stage.KindComposition, Config: cfg})

	var composition compositionManifest
	if err := ws.ReadArtifact(jobID, artifactComposition, &composition); err != nil {
		t.Fatalf("read composition: %v", err)
	}
	if composition.Narration != "" || composition.Score != "" {
		t.Fatalf("absent tracks referenced: %+v", composition)
	}
}

func TestVideoWithoutStoryboardIsTransient(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	handler := NewVideoGenerator(ws, logging.NewNop())
	req := stage.Request{JobID: "job-1", Kind: stage.KindVideoGeneration, Config: testConfig()}
	if err := handler.Prepare(context.Background(), req); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_, err := handler.Execute(context.Background(), req)
	if err == nil {
		t.Fatal("missing storyboard accepted")
	}
	if !services.IsTransient(err) {
		t.Fatalf("missing upstream artifact should be transient: %v", err)
	}
}

func TestModerationScreen(t *testing.T) {
	handler := NewImageGenerator(NewWorkspace(t.TempDir()), logging.NewNop())
	cfg := testConfig()
	cfg.Script = "A scene with graphic violence and more."
	err := handler.Prepare(context.Background(), stage.Request{JobID: "job-1", Kind: stage.KindImageGeneration, Config: cfg})
	if err == nil {
		t.Fatal("flagged script accepted")
	}
	if !errors.Is(err, services.ErrModeration) {
		t.Fatalf("error = %v", err)
	}
	var moderation *services.ModerationError
	if !errors.As(err, &moderation) || len(moderation.Categories) != 1 || moderation.Categories[0] != "violence" {
		t.Fatalf("categories = %+v", moderation)
	}
	if services.IsTransient(err) {
		t.Fatal("moderation rejection must be permanent")
	}
}

func TestEmptyScriptFailsValidation(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	handler := NewImageGenerator(ws, logging.NewNop())
	cfg := jobs.GenerationConfig{Script: "\n\n"}
	req := stage.Request{JobID: "job-1", Kind: stage.KindImageGeneration, Config: cfg}
	if err := handler.Prepare(context.Background(), req); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_, err := handler.Execute(context.Background(), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v", err)
	}
}

func TestSplitScenes(t *testing.T) {
	scenes := splitScenes("One. Two! Three?", 9)
	if len(scenes) != 3 {
		t.Fatalf("scenes = %+v", scenes)
	}
	for i, scene := range scenes {
		if scene.Index != i {
			t.Fatalf("scene index = %d, want %d", scene.Index, i)
		}
		if scene.DurationSecs != 3 {
			t.Fatalf("scene duration = %v", scene.DurationSecs)
		}
	}

	if scenes := splitScenes("   \n  ", 10); scenes != nil {
		t.Fatalf("blank script produced scenes: %+v", scenes)
	}

	defaulted := splitScenes("No punctuation here", 0)
	if len(defaulted) != 1 || defaulted[0].DurationSecs != defaultSceneDuration {
		t.Fatalf("defaulted = %+v", defaulted)
	}
}

func TestWorkspaceRemove(t *testing.T) {
	ws := NewWorkspace(t.TempDir())
	if _, err := ws.WriteArtifact("job-1", artifactStoryboard, storyboardManifest{JobID: "job-1"}); err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if err := ws.Remove("job-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.JobDir("job-1")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("job dir survived: %v", err)
	}
}
