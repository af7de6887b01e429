package orchestrator

import (
	"testing"
	"time"

	"reelsmith/internal/jobs"
	"reelsmith/internal/stage"
)

func fullConfig() jobs.GenerationConfig {
	return jobs.GenerationConfig{Script: "hello.", VoiceEnabled: true, VoiceRequired: true, MusicEnabled: true}
}

func TestBuildGraphShapes(t *testing.T) {
	t.Run("full pipeline", func(t *testing.T) {
		g := buildGraph(fullConfig())
		if len(g.nodes) != 5 {
			t.Fatalf("nodes = %d", len(g.nodes))
		}
		compose := g.nodes[stage.KindComposition]
		if len(compose.deps) != 3 {
			t.Fatalf("composition deps = %v", compose.deps)
		}
		if !g.nodes[stage.KindVoiceSynthesis].critical {
			t.Fatal("required voice should be critical")
		}
		if g.nodes[stage.KindMusicSynthesis].critical {
			t.Fatal("music is always optional")
		}
	})

	t.Run("audio disabled", func(t *testing.T) {
		g := buildGraph(jobs.GenerationConfig{Script: "hello."})
		if len(g.nodes) != 5 {
			t.Fatalf("nodes = %d", len(g.nodes))
		}
		// Disabled stages are built pre-skipped, not omitted, so they are
		// recorded and already satisfy the composition join.
		if got := g.nodes[stage.KindVoiceSynthesis].status; got != jobs.StageSkipped {
			t.Fatalf("voice status = %s", got)
		}
		if got := g.nodes[stage.KindMusicSynthesis].status; got != jobs.StageSkipped {
			t.Fatalf("music status = %s", got)
		}
		g.nodes[stage.KindImageGeneration].status = jobs.StageSucceeded
		g.nodes[stage.KindVideoGeneration].status = jobs.StageSucceeded
		ready := g.eligible(time.Now())
		if len(ready) != 1 || ready[0].kind != stage.KindComposition {
			t.Fatalf("eligible with audio disabled = %v", kindsOf(ready))
		}
	})

	t.Run("optional voice", func(t *testing.T) {
		g := buildGraph(jobs.GenerationConfig{Script: "hello.", VoiceEnabled: true})
		if g.nodes[stage.KindVoiceSynthesis].critical {
			t.Fatal("voice without voice_required should be optional")
		}
	})
}

func TestEligibleRespectsDependenciesAndBackoff(t *testing.T) {
	g := buildGraph(fullConfig())
	now := time.Now()

	ready := g.eligible(now)
	if len(ready) != 1 || ready[0].kind != stage.KindImageGeneration {
		t.Fatalf("initial eligible = %v", kindsOf(ready))
	}

	g.nodes[stage.KindImageGeneration].status = jobs.StageSucceeded
	ready = g.eligible(now)
	if len(ready) != 1 || ready[0].kind != stage.KindVideoGeneration {
		t.Fatalf("after image eligible = %v", kindsOf(ready))
	}

	// Video done: both audio members become eligible together.
	g.nodes[stage.KindVideoGeneration].status = jobs.StageSucceeded
	ready = g.eligible(now)
	if len(ready) != 2 {
		t.Fatalf("audio group eligible = %v", kindsOf(ready))
	}

	// Backoff holds a node back until its retry time arrives.
	g.nodes[stage.KindVoiceSynthesis].nextAttemptAt = now.Add(time.Hour)
	ready = g.eligible(now)
	if len(ready) != 1 || ready[0].kind != stage.KindMusicSynthesis {
		t.Fatalf("backoff eligible = %v", kindsOf(ready))
	}

	// A skipped optional dependency satisfies the join.
	g.nodes[stage.KindVoiceSynthesis].status = jobs.StageSucceeded
	g.nodes[stage.KindMusicSynthesis].status = jobs.StageSkipped
	ready = g.eligible(now)
	if len(ready) != 1 || ready[0].kind != stage.KindComposition {
		t.Fatalf("join eligible = %v", kindsOf(ready))
	}
}

func TestRestoreTreatsRunningAsPending(t *testing.T) {
	g := buildGraph(fullConfig())
	g.restore(map[string]jobs.StageRecord{
		"image_generation": {Kind: "image_generation", Status: jobs.StageSucceeded, Attempts: 1},
		"video_generation": {Kind: "video_generation", Status: jobs.StageRunning, Attempts: 2, ErrorMessage: "was in flight"},
	})

	if g.nodes[stage.KindImageGeneration].status != jobs.StageSucceeded {
		t.Fatal("succeeded record not restored")
	}
	video := g.nodes[stage.KindVideoGeneration]
	if video.status != jobs.StagePending {
		t.Fatalf("running record restored as %s", video.status)
	}
	if video.attempts != 2 {
		t.Fatalf("attempts = %d", video.attempts)
	}

	ready := g.eligible(time.Now())
	if len(ready) != 1 || ready[0].kind != stage.KindVideoGeneration {
		t.Fatalf("eligible after restore = %v", kindsOf(ready))
	}
}

func TestJobStatusForRunningPicksDeepestStage(t *testing.T) {
	g := buildGraph(fullConfig())
	if _, ok := g.jobStatusForRunning(); ok {
		t.Fatal("no running nodes but a status was reported")
	}

	g.nodes[stage.KindVoiceSynthesis].status = jobs.StageRunning
	g.nodes[stage.KindMusicSynthesis].status = jobs.StageRunning
	status, ok := g.jobStatusForRunning()
	if !ok || status != jobs.StatusGeneratingAudio {
		t.Fatalf("audio group status = %s, %v", status, ok)
	}

	g.nodes[stage.KindComposition].status = jobs.StageRunning
	status, _ = g.jobStatusForRunning()
	if status != jobs.StatusComposing {
		t.Fatalf("deepest status = %s", status)
	}
}

func TestDoneRequiresCompositionSuccess(t *testing.T) {
	g := buildGraph(jobs.GenerationConfig{Script: "hello."})
	if g.done() {
		t.Fatal("fresh graph reported done")
	}
	g.nodes[stage.KindComposition].status = jobs.StageSucceeded
	if !g.done() {
		t.Fatal("composition success not reported done")
	}
}

func kindsOf(nodes []*node) []stage.Kind {
	kinds := make([]stage.Kind, 0, len(nodes))
	for _, n := range nodes {
		kinds = append(kinds, n.kind)
	}
	return kinds
}
