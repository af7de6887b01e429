package stage

import (
	"context"
	"testing"

	"reelsmith/internal/jobs"
)

type stubHandler struct {
	name string
}

func (h stubHandler) Prepare(context.Context, Request) error { return nil }

func (h stubHandler) Execute(context.Context, Request) (Result, error) {
	return Result{Detail: h.name}, nil
}

func (h stubHandler) HealthCheck(context.Context) Health { return Healthy(h.name) }

func TestParseKind(t *testing.T) {
	if kind, ok := ParseKind(" Video_Generation "); !ok || kind != KindVideoGeneration {
		t.Fatalf("ParseKind = %s, %v", kind, ok)
	}
	if _, ok := ParseKind("mystery"); ok {
		t.Fatal("unknown kind parsed")
	}
}

func TestJobStatusMapping(t *testing.T) {
	cases := map[Kind]jobs.Status{
		KindImageGeneration: jobs.StatusGeneratingImages,
		KindVideoGeneration: jobs.StatusGeneratingVideo,
		KindVoiceSynthesis:  jobs.StatusGeneratingAudio,
		KindMusicSynthesis:  jobs.StatusGeneratingAudio,
		KindComposition:     jobs.StatusComposing,
	}
	for kind, want := range cases {
		status, ok := kind.JobStatus()
		if !ok || status != want {
			t.Errorf("%s job status = %s, %v", kind, status, ok)
		}
	}
	if _, ok := Kind("mystery").JobStatus(); ok {
		t.Error("unknown kind mapped to a job status")
	}
}

func TestRankOrdersPipelineDepth(t *testing.T) {
	if KindVoiceSynthesis.Rank() != KindMusicSynthesis.Rank() {
		t.Fatal("audio group kinds should share a rank")
	}
	order := []Kind{KindImageGeneration, KindVideoGeneration, KindVoiceSynthesis, KindComposition}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s rank not above %s", order[i], order[i-1])
		}
	}
}

func TestRegistryRejectsBadHandlers(t *testing.T) {
	if _, err := NewRegistry(map[Kind]Handler{Kind("mystery"): stubHandler{}}); err == nil {
		t.Fatal("unknown kind accepted")
	}
	if _, err := NewRegistry(map[Kind]Handler{KindComposition: nil}); err == nil {
		t.Fatal("nil handler accepted")
	}
}

func TestRegistryLookupAndHealth(t *testing.T) {
	registry, err := NewRegistry(map[Kind]Handler{
		KindImageGeneration: stubHandler{name: "image"},
		KindComposition:     stubHandler{name: "compose"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, ok := registry.Handler(KindVideoGeneration); ok {
		t.Fatal("unregistered kind resolved")
	}
	handler, ok := registry.Handler(KindComposition)
	if !ok {
		t.Fatal("registered kind not resolved")
	}
	result, err := handler.Execute(context.Background(), Request{})
	if err != nil || result.Detail != "compose" {
		t.Fatalf("execute = %+v, %v", result, err)
	}

	kinds := registry.Kinds()
	if len(kinds) != 2 || kinds[0] != KindImageGeneration || kinds[1] != KindComposition {
		t.Fatalf("kinds = %v", kinds)
	}

	checks := registry.Health(context.Background())
	if len(checks) != 2 {
		t.Fatalf("health checks = %v", checks)
	}
	for _, check := range checks {
		if !check.Ready {
			t.Fatalf("stub reported unhealthy: %+v", check)
		}
	}
}
