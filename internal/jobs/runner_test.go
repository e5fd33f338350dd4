package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"scribe/internal/engine"
)

// fakeEngine is a scriptable engine test double. Stage errors can be
// injected per stage; gate, when set, blocks Transcribe until
// released so tests can observe mid-flight state.
type fakeEngine struct {
	mu            sync.Mutex
	loadErr       error
	convertErr    error
	transcribeErr error
	transcript    engine.Transcript
	gate          chan struct{}
	cleanedUp     bool
}

func (f *fakeEngine) LoadModel(ctx context.Context) error { return f.loadErr }

func (f *fakeEngine) Convert(ctx context.Context, mediaPath string) (string, error) {
	if f.convertErr != nil {
		return "", f.convertErr
	}
	return "/tmp/fake.wav", nil
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath, language string) (engine.Transcript, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.transcribeErr != nil {
		return engine.Transcript{}, f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeEngine) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanedUp = true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collectUntilClosed(t *testing.T, events <-chan Snapshot) []Snapshot {
	t.Helper()
	var out []Snapshot
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-events:
			if !open {
				return out
			}
			out = append(out, snap)
		case <-timeout:
			t.Fatalf("stream did not close; got %d events so far", len(out))
		}
	}
}

func TestRunnerHappyPathDeliversAllStagesInOrder(t *testing.T) {
	s := NewStore(4)
	fake := &fakeEngine{transcript: engine.Transcript{
		Text: "hello world",
		Segments: []engine.Segment{
			{Start: 0, End: 2.5, Text: "hello"},
			{Start: 2.5, End: 5, Text: "world"},
		},
	}}
	r := NewRunner(s, func() engine.Engine { return fake }, 1, testLogger())

	id, err := s.Create(Request{
		MediaPath:         "/tmp/in.mp4",
		MediaFilename:     "in.mp4",
		IncludeTimestamps: true,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	events, cancel, err := s.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	r.Start(context.Background(), id)
	got := collectUntilClosed(t, events)

	want := []Status{StatusQueued, StatusLoadingModel, StatusConverting, StatusTranscribing, StatusCompleted}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	prevProgress := -1
	for i, snap := range got {
		if snap.Status != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], snap.Status)
		}
		if snap.Progress < prevProgress {
			t.Fatalf("progress regressed at event %d", i)
		}
		prevProgress = snap.Progress
	}

	final := got[len(got)-1]
	if final.Progress != 100 {
		t.Fatalf("completed progress must be 100, got %d", final.Progress)
	}
	if final.Result == nil || final.Result.Text != "hello world" {
		t.Fatalf("missing transcript in result: %+v", final.Result)
	}
	if len(final.Result.Timestamps) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(final.Result.Timestamps))
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !fake.cleanedUp {
		t.Fatalf("engine Cleanup was not called")
	}
}

func TestRunnerFailureDuringConversion(t *testing.T) {
	s := NewStore(4)
	fake := &fakeEngine{convertErr: errors.New("unsupported codec")}
	r := NewRunner(s, func() engine.Engine { return fake }, 1, testLogger())

	id, _ := s.Create(Request{MediaPath: "/tmp/in.mp4"})
	events, cancel, err := s.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	r.Start(context.Background(), id)
	got := collectUntilClosed(t, events)

	want := []Status{StatusQueued, StatusLoadingModel, StatusConverting, StatusFailed}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i, snap := range got {
		if snap.Status != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], snap.Status)
		}
		// No transcribing or completed event may ever be delivered.
		if snap.Status == StatusTranscribing || snap.Status == StatusCompleted {
			t.Fatalf("stage after failure leaked: %s", snap.Status)
		}
	}

	final := got[len(got)-1]
	if final.Error != "unsupported codec" {
		t.Fatalf("failure must carry the engine error, got %q", final.Error)
	}
	if final.Progress != 30 {
		t.Fatalf("failure must keep last progress (30), got %d", final.Progress)
	}

	snap, _ := s.Get(id)
	if snap.Status != StatusFailed || snap.Error == "" {
		t.Fatalf("store snapshot inconsistent after failure: %+v", snap)
	}
}

func TestRunnerDiscardMidStageStaysSilent(t *testing.T) {
	s := NewStore(4)
	gate := make(chan struct{})
	fake := &fakeEngine{
		gate:       gate,
		transcript: engine.Transcript{Text: "too late"},
	}
	r := NewRunner(s, func() engine.Engine { return fake }, 1, testLogger())

	id, _ := s.Create(Request{MediaPath: "/tmp/in.mp4"})
	r.Start(context.Background(), id)

	// Wait until the worker is inside the transcribing stage.
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := s.Get(id)
		if err == nil && snap.Status == StatusTranscribing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker never reached transcribing")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Discard(id)
	close(gate) // let the in-flight collaborator call finish

	// The worker's completion must not resurrect the job.
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("discarded job came back")
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	s := NewStore(8)
	gate := make(chan struct{})

	var mu sync.Mutex
	running, peak := 0, 0
	factory := func() engine.Engine {
		return &countingEngine{gate: gate, mu: &mu, running: &running, peak: &peak}
	}

	r := NewRunner(s, factory, 2, testLogger())
	for i := 0; i < 6; i++ {
		id, err := s.Create(Request{MediaPath: "/tmp/in.mp4"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		r.Start(context.Background(), id)
	}

	time.Sleep(100 * time.Millisecond)
	close(gate)

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		p, n := peak, running
		mu.Unlock()
		if n == 0 && p > 0 {
			if p > 2 {
				t.Fatalf("concurrency ceiling exceeded: peak %d", p)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("workers never drained (running=%d)", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// countingEngine tracks how many instances are mid-pipeline at once.
type countingEngine struct {
	gate    chan struct{}
	mu      *sync.Mutex
	running *int
	peak    *int
}

func (e *countingEngine) LoadModel(ctx context.Context) error {
	e.mu.Lock()
	*e.running++
	if *e.running > *e.peak {
		*e.peak = *e.running
	}
	e.mu.Unlock()
	return nil
}

func (e *countingEngine) Convert(ctx context.Context, mediaPath string) (string, error) {
	<-e.gate
	return "/tmp/fake.wav", nil
}

func (e *countingEngine) Transcribe(ctx context.Context, audioPath, language string) (engine.Transcript, error) {
	return engine.Transcript{Text: "ok"}, nil
}

func (e *countingEngine) Cleanup() {
	e.mu.Lock()
	*e.running--
	e.mu.Unlock()
}
