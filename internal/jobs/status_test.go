package jobs

import "testing"

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to validating", StatusPending, StatusValidating, true},
		{"pending to processing skips validation", StatusPending, StatusProcessing, false},
		{"validating to queued", StatusValidating, StatusQueued, true},
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"processing to images", StatusProcessing, StatusGeneratingImages, true},
		{"images to video", StatusGeneratingImages, StatusGeneratingVideo, true},
		{"video to audio", StatusGeneratingVideo, StatusGeneratingAudio, true},
		{"video straight to composing", StatusGeneratingVideo, StatusComposing, true},
		{"audio to composing", StatusGeneratingAudio, StatusComposing, true},
		{"composing to completed", StatusComposing, StatusCompleted, true},
		{"composing back to video", StatusComposing, StatusGeneratingVideo, false},
		{"completed is terminal", StatusCompleted, StatusPending, false},
		{"failed is terminal", StatusFailed, StatusPending, false},
		{"cancelled is terminal", StatusCancelled, StatusProcessing, false},
		{"any active to failed", StatusGeneratingAudio, StatusFailed, true},
		{"any active to cancelled", StatusComposing, StatusCancelled, true},
		{"unknown from fails closed", Status("bogus"), StatusPending, false},
		{"unknown to fails closed", StatusPending, Status("bogus"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestEveryActiveStatusCanFailAndCancel(t *testing.T) {
	for _, status := range AllStatuses() {
		if status.IsTerminal() {
			continue
		}
		if !CanTransition(status, StatusFailed) {
			t.Errorf("%s cannot fail", status)
		}
		if !CanTransition(status, StatusCancelled) {
			t.Errorf("%s cannot cancel", status)
		}
	}
}

func TestNextStates(t *testing.T) {
	if next := NextStates(StatusCompleted); next != nil {
		t.Fatalf("terminal status returned next states: %v", next)
	}
	if next := NextStates(Status("bogus")); next != nil {
		t.Fatalf("unknown status returned next states: %v", next)
	}
	next := NextStates(StatusGeneratingVideo)
	if len(next) != 4 {
		t.Fatalf("generating_video next states = %v", next)
	}

	// Mutating the returned slice must not corrupt the table.
	next[0] = StatusPending
	again := NextStates(StatusGeneratingVideo)
	if again[0] == StatusPending {
		t.Fatal("NextStates returned an aliased slice")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	if Status("bogus").IsTerminal() {
		t.Error("unknown status reported terminal")
	}
	if StatusProcessing.IsTerminal() {
		t.Error("processing reported terminal")
	}
}

func TestBaselineProgressOrdering(t *testing.T) {
	order := []Status{
		StatusPending, StatusValidating, StatusQueued, StatusProcessing,
		StatusGeneratingImages, StatusGeneratingVideo, StatusGeneratingAudio,
		StatusComposing, StatusCompleted,
	}
	previous := -1.0
	for _, status := range order {
		value, ok := BaselineProgress(status)
		if !ok {
			t.Fatalf("no baseline for %s", status)
		}
		if value <= previous {
			t.Fatalf("baseline for %s (%v) not above previous (%v)", status, value, previous)
		}
		previous = value
	}
	if _, ok := BaselineProgress(StatusFailed); ok {
		t.Fatal("failed should not carry a baseline")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus("  Generating_Video "); !ok || status != StatusGeneratingVideo {
		t.Fatalf("ParseStatus normalized = %s, %v", status, ok)
	}
	if _, ok := ParseStatus("unknown"); ok {
		t.Fatal("unknown status parsed")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status parsed")
	}
}
