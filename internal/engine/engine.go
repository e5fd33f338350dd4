// Package engine wraps the external speech-to-text toolchain (ffmpeg
// for media normalization, the whisper CLI for transcription) behind
// a narrow interface the pipeline worker drives.
package engine

import "context"

// Segment is one timestamped span of transcribed speech.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the output of one transcription run.
type Transcript struct {
	Text     string
	Segments []Segment
}

// Engine is the transcription collaborator used by the pipeline
// worker. One Engine instance serves one job: implementations may
// hold per-job temporary state released by Cleanup. Calls may block
// for seconds to minutes; the worker holds no locks across them.
type Engine interface {
	// LoadModel prepares the speech-to-text model for use.
	LoadModel(ctx context.Context) error

	// Convert normalizes input media into the audio layout the model
	// expects and returns the path of the converted artifact.
	Convert(ctx context.Context, mediaPath string) (string, error)

	// Transcribe runs speech-to-text over a converted artifact.
	// language may be empty for auto-detection.
	Transcribe(ctx context.Context, audioPath, language string) (Transcript, error)

	// Cleanup removes temporary artifacts created for this job.
	Cleanup()
}

// Factory produces a fresh Engine for each job.
type Factory func() Engine
