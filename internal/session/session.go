// Package session tracks anonymous visitor sessions: which uploaded
// files and which jobs belong to one browser visit, so that ending
// the visit can reclaim everything it created.
package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobDiscarder is the slice of the job store a session teardown
// needs.
type JobDiscarder interface {
	Discard(jobID string) bool
}

// EndResult reports what a session teardown reclaimed.
type EndResult struct {
	FilesDeleted  int      `json:"files_deleted"`
	JobsDiscarded int      `json:"jobs_discarded"`
	Errors        []string `json:"errors,omitempty"`
}

type session struct {
	createdAt time.Time
	files     []string
	jobIDs    []string
}

// Manager is the in-memory session registry. Sessions are anonymous
// and non-durable; a process restart forgets them all, along with the
// jobs they owned.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	jobs     JobDiscarder
	logger   *slog.Logger
	maxAge   time.Duration
}

func NewManager(jobs JobDiscarder, maxAge time.Duration, logger *slog.Logger) *Manager {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Manager{
		sessions: make(map[string]*session),
		jobs:     jobs,
		logger:   logger,
		maxAge:   maxAge,
	}
}

// Create allocates a new session and returns its id.
func (m *Manager) Create() string {
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &session{createdAt: time.Now().UTC()}
	return id
}

// Exists reports whether the session id is known.
func (m *Manager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// AddFile tracks a file created on behalf of a session so teardown
// can delete it.
func (m *Manager) AddFile(id, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.files = append(s.files, path)
	}
}

// AddJob ties a job to its owning session.
func (m *Manager) AddJob(id, jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.jobIDs = append(s.jobIDs, jobID)
	}
}

// FilePrefix returns the filename prefix for a session's uploads.
func FilePrefix(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}

// End tears a session down: discards its jobs, deletes its files, and
// removes the session. Ending an unknown session is a no-op with zero
// counts.
func (m *Manager) End(id string) EndResult {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var res EndResult
	if !ok {
		return res
	}

	for _, jobID := range s.jobIDs {
		if m.jobs.Discard(jobID) {
			res.JobsDiscarded++
		}
	}

	for _, path := range s.files {
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.FilesDeleted++
	}

	m.logger.Info("session_ended",
		"session_id", FilePrefix(id),
		"files_deleted", res.FilesDeleted,
		"jobs_discarded", res.JobsDiscarded,
	)
	return res
}

// SweepStale ends every session older than the configured max age and
// returns how many were removed.
func (m *Manager) SweepStale() int {
	cutoff := time.Now().UTC().Add(-m.maxAge)

	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		if s.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.End(id)
	}

	if len(stale) > 0 {
		m.logger.Info("stale_sessions_swept", "count", len(stale))
	}
	return len(stale)
}

// StartSweeper runs SweepStale on the given interval until ctx is
// cancelled. Callers run this in its own goroutine.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepStale()
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
