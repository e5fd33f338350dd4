package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeDiscarder struct {
	discarded []string
}

func (f *fakeDiscarder) Discard(jobID string) bool {
	f.discarded = append(f.discarded, jobID)
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestEndReclaimsFilesAndJobs(t *testing.T) {
	dir := t.TempDir()
	jobs := &fakeDiscarder{}
	m := NewManager(jobs, time.Hour, testLogger())

	id := m.Create()
	f1 := tempFile(t, dir, "a.mp4")
	f2 := tempFile(t, dir, "b.wav")
	m.AddFile(id, f1)
	m.AddFile(id, f2)
	m.AddJob(id, "job-1")
	m.AddJob(id, "job-2")

	res := m.End(id)
	if res.FilesDeleted != 2 {
		t.Fatalf("expected 2 files deleted, got %d", res.FilesDeleted)
	}
	if res.JobsDiscarded != 2 {
		t.Fatalf("expected 2 jobs discarded, got %d", res.JobsDiscarded)
	}
	if len(jobs.discarded) != 2 {
		t.Fatalf("discarder not invoked for all jobs")
	}
	for _, p := range []string{f1, f2} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("file %s survived teardown", p)
		}
	}
	if m.Exists(id) {
		t.Fatalf("session still registered after End")
	}
}

func TestEndUnknownSessionIsNoOp(t *testing.T) {
	m := NewManager(&fakeDiscarder{}, time.Hour, testLogger())

	res := m.End("nope")
	if res.FilesDeleted != 0 || res.JobsDiscarded != 0 {
		t.Fatalf("unexpected counts for unknown session: %+v", res)
	}
}

func TestEndToleratesAlreadyDeletedFiles(t *testing.T) {
	m := NewManager(&fakeDiscarder{}, time.Hour, testLogger())

	id := m.Create()
	m.AddFile(id, filepath.Join(t.TempDir(), "never-existed.mp4"))

	res := m.End(id)
	if res.FilesDeleted != 0 {
		t.Fatalf("expected 0 files deleted, got %d", res.FilesDeleted)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("missing files must not be reported as errors: %+v", res.Errors)
	}
}

func TestSweepStaleOnlyRemovesOldSessions(t *testing.T) {
	jobs := &fakeDiscarder{}
	m := NewManager(jobs, 50*time.Millisecond, testLogger())

	old := m.Create()
	time.Sleep(80 * time.Millisecond)
	fresh := m.Create()

	removed := m.SweepStale()
	if removed != 1 {
		t.Fatalf("expected 1 stale session, got %d", removed)
	}
	if m.Exists(old) {
		t.Fatalf("stale session survived sweep")
	}
	if !m.Exists(fresh) {
		t.Fatalf("fresh session was swept")
	}
}
