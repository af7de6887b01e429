package synth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"reelsmith/internal/services"
)

// Artifact file names inside a job's staging directory.
const (
	artifactStoryboard  = "storyboard.json"
	artifactTimeline    = "timeline.json"
	artifactNarration   = "narration.json"
	artifactScore       = "score.json"
	artifactComposition = "composition.json"
)

// Workspace manages per-job staging directories and their artifacts.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at the staging directory.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the workspace's staging root.
func (w *Workspace) Root() string {
	return w.root
}

// JobDir returns the staging directory for a job without creating it.
func (w *Workspace) JobDir(jobID string) string {
	return filepath.Join(w.root, jobID)
}

// EnsureJobDir creates the job's staging directory if needed.
func (w *Workspace) EnsureJobDir(jobID string) (string, error) {
	dir := w.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory %q: %w", dir, err)
	}
	return dir, nil
}

// ArtifactPath returns the path of a named artifact for a job.
func (w *Workspace) ArtifactPath(jobID, name string) string {
	return filepath.Join(w.JobDir(jobID), name)
}

// WriteArtifact serializes a manifest into the job's staging directory and
// returns its path.
func (w *Workspace) WriteArtifact(jobID, name string, payload any) (string, error) {
	if _, err := w.EnsureJobDir(jobID); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact %q: %w", name, err)
	}
	path := w.ArtifactPath(jobID, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", path, err)
	}
	return path, nil
}

// ReadArtifact loads a previously written manifest. A missing artifact is
// reported as an external tool failure so the retry policy treats the read
// as transient.
func (w *Workspace) ReadArtifact(jobID, name string, out any) error {
	path := w.ArtifactPath(jobID, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "", "read artifact",
			fmt.Sprintf("missing upstream artifact %s", name), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "read artifact",
			fmt.Sprintf("corrupt upstream artifact %s", name), err)
	}
	return nil
}

// Remove deletes a job's staging directory and everything in it.
func (w *Workspace) Remove(jobID string) error {
	if err := os.RemoveAll(w.JobDir(jobID)); err != nil {
		return fmt.Errorf("remove staging directory: %w", err)
	}
	return nil
}

// healthCheck verifies the staging root is usable for writes.
func (w *Workspace) healthCheck(name string) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("%s: staging root unavailable: %w", name, err)
	}
	probe, err := os.CreateTemp(w.root, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("%s: staging root not writable: %w", name, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
