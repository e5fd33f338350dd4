package uploads

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(config.UploadsConfig{Dir: t.TempDir(), MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func TestValidateExtensionAllowlist(t *testing.T) {
	s := newTestStore(t)

	if err := s.Validate("meeting.mp4", 100); err != nil {
		t.Fatalf("mp4 should be allowed: %v", err)
	}
	if err := s.Validate("notes.AVI", 100); err != nil {
		t.Fatalf("extension match must be case-insensitive: %v", err)
	}
	if err := s.Validate("evil.exe", 100); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if err := s.Validate("huge.mp4", 2*1024*1024); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"my meeting (final).mp4": "mymeetingfinal.mp4",
		"../../etc/passwd":       "......etcpasswd",
		"видео.mp4":              ".mp4",
		"":                       "media",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveWritesSessionPrefixedFile(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("abcd1234", "talk.mp4", strings.NewReader("media bytes"))
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if filepath.Base(path) != "abcd1234_talk.mp4" {
		t.Fatalf("unexpected stored name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "media bytes" {
		t.Fatalf("stored content mismatch: %q, %v", data, err)
	}
}

func TestSaveRejectsOversizedStream(t *testing.T) {
	s := newTestStore(t)

	big := strings.NewReader(strings.Repeat("x", 1024*1024+10))
	if _, err := s.Save("abcd1234", "big.mp4", big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("oversized upload left a partial file behind")
	}
}

func TestDirSizeAndFormat(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("abcd1234", "a.mp4", strings.NewReader("12345")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	total, err := s.DirSize()
	if err != nil {
		t.Fatalf("DirSize error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 bytes, got %d", total)
	}

	cases := map[int64]string{
		0:                "0 B",
		512:              "512 B",
		2048:             "2.0 KB",
		5 * 1024 * 1024:  "5.0 MB",
		3 << 30:          "3.00 GB",
	}
	for n, want := range cases {
		if got := FormatSize(n); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", n, got, want)
		}
	}
}
