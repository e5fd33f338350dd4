package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
)

// Whisper runs transcription through the whisper CLI, with ffmpeg
// handling media normalization. One instance per job; Cleanup removes
// the job's temporary workspace.
type Whisper struct {
	ffmpegBin  string
	whisperBin string
	modelSize  string
	exec       Executor

	lookPath func(string) (string, error)
	tempDir  string
}

// NewWhisper constructs a per-job engine from configuration,
// defaulting to ffmpeg/whisper on PATH and the base model.
func NewWhisper(cfg config.EngineConfig) *Whisper {
	w := &Whisper{
		ffmpegBin:  cfg.FfmpegBin,
		whisperBin: cfg.WhisperBin,
		modelSize:  cfg.ModelSize,
		exec:       NewExecutor(),
		lookPath:   exec.LookPath,
	}
	if w.ffmpegBin == "" {
		w.ffmpegBin = "ffmpeg"
	}
	if w.whisperBin == "" {
		w.whisperBin = "whisper"
	}
	if w.modelSize == "" {
		w.modelSize = "base"
	}
	return w
}

// LoadModel verifies the toolchain is available and creates the job's
// temporary workspace. The CLI loads model weights per invocation, so
// availability is the meaningful readiness check here.
func (w *Whisper) LoadModel(ctx context.Context) error {
	if _, err := w.lookPath(w.ffmpegBin); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	if _, err := w.lookPath(w.whisperBin); err != nil {
		return fmt.Errorf("whisper not available: %w", err)
	}

	dir, err := os.MkdirTemp("", "scribe-job-*")
	if err != nil {
		return fmt.Errorf("create temp workspace: %w", err)
	}
	w.tempDir = dir
	return nil
}

// Convert extracts audio as 16kHz mono PCM WAV, the layout whisper
// performs best on.
func (w *Whisper) Convert(ctx context.Context, mediaPath string) (string, error) {
	if w.tempDir == "" {
		return "", fmt.Errorf("engine not loaded")
	}

	wavPath := filepath.Join(w.tempDir, "audio-16k-mono.wav")
	args := []string{
		"-i", mediaPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		wavPath,
	}

	if _, err := w.exec.Run(ctx, w.ffmpegBin, args...); err != nil {
		return "", fmt.Errorf("ffmpeg conversion failed: %w", err)
	}
	if _, err := os.Stat(wavPath); err != nil {
		return "", fmt.Errorf("ffmpeg completed but output is missing: %w", err)
	}

	return wavPath, nil
}

// whisperOutput mirrors the JSON document the whisper CLI writes next
// to the input file.
type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe invokes the whisper CLI with JSON output and parses the
// resulting document into a Transcript.
func (w *Whisper) Transcribe(ctx context.Context, audioPath, language string) (Transcript, error) {
	args := []string{
		audioPath,
		"--model", w.modelSize,
		"--output_dir", w.tempDir,
		"--output_format", "json",
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	if _, err := w.exec.Run(ctx, w.whisperBin, args...); err != nil {
		return Transcript{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(w.tempDir, base+".json")

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper completed but transcript is missing: %w", err)
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}

	tr := Transcript{Text: strings.TrimSpace(out.Text)}
	for _, seg := range out.Segments {
		tr.Segments = append(tr.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return tr, nil
}

// Cleanup removes the job's temporary workspace (converted WAV and
// whisper output files).
func (w *Whisper) Cleanup() {
	if w.tempDir != "" {
		_ = os.RemoveAll(w.tempDir)
		w.tempDir = ""
	}
}
