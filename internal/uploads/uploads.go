// Package uploads validates and stores submitted media files under
// the configured uploads directory.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scribe/internal/config"
)

var (
	// ErrUnsupportedType is returned for files whose extension is not
	// on the allowlist.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("file too large")
)

var defaultExtensions = []string{
	".mp4", ".avi", ".mov", ".mkv", ".webm", ".m4v",
	".mp3", ".wav", ".m4a",
}

const defaultMaxSizeMB = 500

// Store saves uploads and answers questions about the uploads dir.
type Store struct {
	dir     string
	maxSize int64
	allowed map[string]struct{}
}

func New(cfg config.UploadsConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	maxMB := cfg.MaxSizeMB
	if maxMB <= 0 {
		maxMB = defaultMaxSizeMB
	}

	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Store{
		dir:     dir,
		maxSize: int64(maxMB) * 1024 * 1024,
		allowed: allowed,
	}, nil
}

// Dir returns the uploads directory path.
func (s *Store) Dir() string { return s.dir }

// MaxSize returns the upload size cap in bytes.
func (s *Store) MaxSize() int64 { return s.maxSize }

// AllowedList returns the allowed extensions, sorted for messages.
func (s *Store) AllowedList() string {
	exts := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// Validate checks filename extension and declared size before any
// bytes are read.
func (s *Store) Validate(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := s.allowed[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	if size > s.maxSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// SanitizeName strips everything but alphanumerics, dots, dashes and
// underscores from an original filename.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "media"
	}
	return b.String()
}

// Save writes src to a session-prefixed file in the uploads dir and
// returns its path. Reads are capped at the size limit.
func (s *Store) Save(prefix, filename string, src io.Reader) (string, error) {
	name := prefix + "_" + SanitizeName(filename)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, s.maxSize+1))
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if n > s.maxSize {
		_ = os.Remove(path)
		return "", ErrTooLarge
	}

	return path, nil
}

// DirSize sums the sizes of all regular files in the uploads dir.
func (s *Store) DirSize() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FormatSize renders a byte count for humans.
func FormatSize(n int64) string {
	switch {
	case n == 0:
		return "0 B"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	}
}
