package orchestrator

import (
	"time"

	"reelsmith/internal/jobs"
	"reelsmith/internal/stage"
	"reelsmith/internal/tasks"
)

// node is one StageInvocation in the per-job execution graph.
type node struct {
	kind stage.Kind
	deps []stage.Kind
	// critical nodes fail the whole job; non-critical nodes are skipped.
	critical bool

	status        jobs.StageStatus
	attempts      int
	errorMessage  string
	artifact      string
	handle        tasks.Handle
	nextAttemptAt time.Time
}

// executionGraph is the in-memory DAG for one running job. It is a
// deterministic function of the job's generation config plus the persisted
// per-stage outcomes, so it is rebuilt rather than persisted.
type executionGraph struct {
	nodes map[stage.Kind]*node
	order []stage.Kind
}

// buildGraph derives the stage DAG from the job configuration. Every kind
// gets a node; audio stages disabled by the config are built already skipped,
// so they satisfy the composition join and are recorded the same way as a
// skipped optional failure. Whether audio runs is decided here, at
// construction time, not by any runtime check.
func buildGraph(cfg jobs.GenerationConfig) *executionGraph {
	g := &executionGraph{nodes: make(map[stage.Kind]*node)}

	g.add(&node{kind: stage.KindImageGeneration, critical: true})
	g.add(&node{kind: stage.KindVideoGeneration, deps: []stage.Kind{stage.KindImageGeneration}, critical: true})

	voice := &node{kind: stage.KindVoiceSynthesis, deps: []stage.Kind{stage.KindVideoGeneration}, critical: cfg.VoiceRequired}
	music := &node{kind: stage.KindMusicSynthesis, deps: []stage.Kind{stage.KindVideoGeneration}, critical: false}
	g.add(voice)
	g.add(music)
	if !cfg.VoiceEnabled {
		voice.status = jobs.StageSkipped
	}
	if !cfg.MusicEnabled {
		music.status = jobs.StageSkipped
	}

	g.add(&node{kind: stage.KindComposition, deps: []stage.Kind{
		stage.KindVideoGeneration, stage.KindVoiceSynthesis, stage.KindMusicSynthesis,
	}, critical: true})
	return g
}

func (g *executionGraph) add(n *node) {
	n.status = jobs.StagePending
	g.nodes[n.kind] = n
	g.order = append(g.order, n.kind)
}

// restore overlays persisted stage outcomes onto a freshly built graph.
// A row left in running state has no live invocation after a restart; the
// attempt is treated as transiently failed and the node re-dispatched.
func (g *executionGraph) restore(records map[string]jobs.StageRecord) {
	for _, kind := range g.order {
		n := g.nodes[kind]
		record, ok := records[string(kind)]
		if !ok {
			continue
		}
		n.attempts = record.Attempts
		n.errorMessage = record.ErrorMessage
		switch record.Status {
		case jobs.StageSucceeded, jobs.StageSkipped, jobs.StageFailed:
			n.status = record.Status
		case jobs.StageRunning:
			n.status = jobs.StagePending
		default:
			n.status = jobs.StagePending
		}
	}
}

// eligible returns pending nodes whose dependencies are all satisfied and
// whose retry backoff has elapsed. A skipped optional dependency counts as
// satisfied.
func (g *executionGraph) eligible(now time.Time) []*node {
	var ready []*node
	for _, kind := range g.order {
		n := g.nodes[kind]
		if n.status != jobs.StagePending {
			continue
		}
		if now.Before(n.nextAttemptAt) {
			continue
		}
		if g.depsSatisfied(n) {
			ready = append(ready, n)
		}
	}
	return ready
}

func (g *executionGraph) depsSatisfied(n *node) bool {
	for _, dep := range n.deps {
		depNode, ok := g.nodes[dep]
		if !ok {
			return false
		}
		if depNode.status != jobs.StageSucceeded && depNode.status != jobs.StageSkipped {
			return false
		}
	}
	return true
}

// running returns nodes with an in-flight invocation.
func (g *executionGraph) running() []*node {
	var active []*node
	for _, kind := range g.order {
		if n := g.nodes[kind]; n.status == jobs.StageRunning {
			active = append(active, n)
		}
	}
	return active
}

// jobStatusForRunning picks the job status implied by the most-advanced
// running node. The parallel audio group reports generating_audio for its
// whole duration regardless of which members are still in flight.
func (g *executionGraph) jobStatusForRunning() (jobs.Status, bool) {
	var best *node
	for _, n := range g.running() {
		if best == nil || n.kind.Rank() > best.kind.Rank() {
			best = n
		}
	}
	if best == nil {
		return "", false
	}
	return best.kind.JobStatus()
}

// done reports whether the composition node has succeeded.
func (g *executionGraph) done() bool {
	compose, ok := g.nodes[stage.KindComposition]
	return ok && compose.status == jobs.StageSucceeded
}

// finalArtifact returns the composition output path, when known. A graph
// restored after a restart loses the in-memory path; callers tolerate empty.
func (g *executionGraph) finalArtifact() string {
	if compose, ok := g.nodes[stage.KindComposition]; ok {
		return compose.artifact
	}
	return ""
}

// record converts a node to its persisted form.
func (n *node) record(jobID string) jobs.StageRecord {
	return jobs.StageRecord{
		JobID:        jobID,
		Kind:         string(n.kind),
		Status:       n.status,
		Attempts:     n.attempts,
		ErrorMessage: n.errorMessage,
	}
}
