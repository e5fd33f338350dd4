package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or discarded job ids.
	ErrNotFound = errors.New("job not found")

	// ErrStoreExhausted is returned when the store is at capacity and
	// cannot admit another job.
	ErrStoreExhausted = errors.New("job store exhausted")
)

// DefaultMaxTrackedJobs bounds the registry when no limit is
// configured.
const DefaultMaxTrackedJobs = 64

// Store is the in-memory registry of jobs and the single source of
// truth for their state. Each record carries its own lock and bus
// topic; a state mutation and its publish happen as one atomic step
// under that lock, so no subscriber can observe an event the store
// has not already applied, and no reader can observe a store value
// that has not been published.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*record
	maxJobs int
}

type record struct {
	mu        sync.Mutex
	req       Request
	snap      Snapshot
	createdAt time.Time
	topic     *topic
	discarded bool
}

func NewStore(maxJobs int) *Store {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxTrackedJobs
	}
	return &Store{
		jobs:    make(map[string]*record),
		maxJobs: maxJobs,
	}
}

// newJobID prefers uuidv7 for time-ordered ids.
func newJobID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// Create allocates a new queued job and returns its id. It fails only
// when the registry is at capacity.
func (s *Store) Create(req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) >= s.maxJobs {
		return "", ErrStoreExhausted
	}

	id := newJobID()
	s.jobs[id] = &record{
		req: req,
		snap: Snapshot{
			JobID:   id,
			Status:  StatusQueued,
			Message: "Job queued",
		},
		createdAt: time.Now().UTC(),
		topic:     newTopic(),
	}
	return id, nil
}

// Get returns a consistent snapshot of the job, or ErrNotFound if the
// id is unknown or the job has been discarded.
func (s *Store) Get(id string) (Snapshot, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded {
		return Snapshot{}, ErrNotFound
	}
	return rec.snap, nil
}

// Request returns the submission parameters for a job. The worker
// reads these once when it picks the job up.
func (s *Store) Request(id string) (Request, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return Request{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded {
		return Request{}, ErrNotFound
	}
	return rec.req, nil
}

// Update advances a non-terminal job and publishes the new snapshot.
// Progress never regresses. Updates on discarded or terminal jobs are
// silent no-ops so an in-flight worker can race a discard safely.
func (s *Store) Update(id string, status Status, progress int, message string) {
	rec, ok := s.lookup(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded || rec.snap.Status.Terminal() {
		return
	}

	if progress < rec.snap.Progress {
		progress = rec.snap.Progress
	}
	rec.snap.Status = status
	rec.snap.Progress = progress
	rec.snap.Message = message
	rec.topic.publish(rec.snap)
}

// Complete moves a job to its terminal completed state, attaches the
// result, and publishes exactly one terminal snapshot.
func (s *Store) Complete(id string, result *Result, message string) {
	rec, ok := s.lookup(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded || rec.snap.Status.Terminal() {
		return
	}

	rec.snap.Status = StatusCompleted
	rec.snap.Progress = 100
	rec.snap.Message = message
	rec.snap.Result = result
	rec.topic.publish(rec.snap)
}

// Fail moves a job to its terminal failed state. Progress keeps its
// last known value; the error string is always non-empty.
func (s *Store) Fail(id string, errMsg string) {
	if errMsg == "" {
		errMsg = "unknown error"
	}

	rec, ok := s.lookup(id)
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded || rec.snap.Status.Terminal() {
		return
	}

	rec.snap.Status = StatusFailed
	rec.snap.Message = "Transcription failed: " + errMsg
	rec.snap.Error = errMsg
	rec.topic.publish(rec.snap)
}

// Discard removes the record and releases its bus topic. Safe to call
// concurrently with an in-flight worker; the worker's later updates
// become no-ops. Returns false if the job was already gone.
func (s *Store) Discard(id string) bool {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.discarded = true
	rec.topic.shutdown()
	return true
}

// Subscribe attaches a progress listener to a job. The returned
// channel delivers the current snapshot first, then live events, and
// is closed after the terminal snapshot (or on discard/cancel). The
// cancel func releases the subscription and is safe to call more
// than once.
func (s *Store) Subscribe(id string) (<-chan Snapshot, func(), error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.discarded {
		return nil, nil, ErrNotFound
	}

	ch, cancel := rec.topic.subscribe(rec.snap)
	return ch, cancel, nil
}

// Len reports the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) lookup(id string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	return rec, ok
}
