package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor abstracts external process execution so the engine can be
// tested without ffmpeg or whisper installed.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor() Executor {
	return &execRunner{}
}

// Run executes one command and returns its stdout. On failure the
// error carries trimmed stderr, which is what ffmpeg and whisper put
// their diagnostics on.
func (e *execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return stdout.String(), nil
}
