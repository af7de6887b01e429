// Package synth provides the built-in generation stage handlers. Each
// handler turns its part of a script submission into a render manifest in
// the job's staging workspace: a storyboard for images, a shot timeline
// for video, narration and score plans for audio, and a final composition
// manifest that binds them together. The handlers implement stage.Handler
// and are dispatched through the task backend.
package synth
