package jobs

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/engine"
	"scribe/internal/metrics"
)

// Stage progress values match the original UI contract: each stage
// reports a fixed percentage on entry and completed is always 100.
const (
	progressLoadingModel = 10
	progressConverting   = 30
	progressTranscribing = 50
)

// Runner executes the pipeline stages for submitted jobs, one
// goroutine per job, bounded by a semaphore. Every state change is
// routed through the store so subscribers and the worker can never
// disagree; a job discarded mid-stage silently swallows the worker's
// remaining updates.
type Runner struct {
	store     *Store
	newEngine engine.Factory
	logger    *slog.Logger
	sem       chan struct{}
}

// NewRunner constructs a Runner. maxConcurrent bounds simultaneous
// pipeline executions; submissions beyond it queue on the semaphore.
func NewRunner(store *Store, factory engine.Factory, maxConcurrent int, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Runner{
		store:     store,
		newEngine: factory,
		logger:    logger,
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// Start launches the worker for one job and returns immediately. The
// job stays queued until a worker slot frees up.
func (r *Runner) Start(ctx context.Context, id string) {
	go func() {
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-r.sem }()
		r.run(ctx, id)
	}()
}

func (r *Runner) run(ctx context.Context, id string) {
	req, err := r.store.Request(id)
	if err != nil {
		// Discarded before a worker slot freed up.
		return
	}

	start := time.Now()
	eng := r.newEngine()
	defer eng.Cleanup()

	r.store.Update(id, StatusLoadingModel, progressLoadingModel, "Loading Whisper model...")
	if err := eng.LoadModel(ctx); err != nil {
		r.fail(id, StatusLoadingModel, err)
		return
	}

	r.store.Update(id, StatusConverting, progressConverting, "Converting audio with ffmpeg...")
	audioPath, err := eng.Convert(ctx, req.MediaPath)
	if err != nil {
		r.fail(id, StatusConverting, err)
		return
	}

	r.store.Update(id, StatusTranscribing, progressTranscribing, "Transcribing audio...")
	tr, err := eng.Transcribe(ctx, audioPath, req.Language)
	if err != nil {
		r.fail(id, StatusTranscribing, err)
		return
	}

	result := &Result{
		Text:              tr.Text,
		MediaFilename:     req.MediaFilename,
		IncludeTimestamps: req.IncludeTimestamps,
	}
	for _, seg := range tr.Segments {
		result.Timestamps = append(result.Timestamps, Segment{
			StartTime: seg.Start,
			EndTime:   seg.End,
			Text:      seg.Text,
		})
	}

	r.store.Complete(id, result, "Transcription complete!")
	metrics.RecordJobCompleted(time.Since(start).Milliseconds())
	r.logger.Info("job_completed",
		"job_id", id,
		"media", req.MediaFilename,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// fail converts a stage error into exactly one terminal failed
// snapshot. Stage errors never propagate past the worker boundary.
func (r *Runner) fail(id string, stage Status, err error) {
	r.store.Fail(id, err.Error())
	metrics.RecordJobFailed(string(stage))
	r.logger.Error("job_failed",
		"job_id", id,
		"stage", string(stage),
		"error", err.Error(),
	)
}
