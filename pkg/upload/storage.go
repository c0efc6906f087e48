package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage moves a validated temporary upload into durable storage and
// returns a reference suitable for persisting alongside other form values.
type Storage interface {
	Accept(ctx context.Context, file File) (Reference, error)
}

// Reference identifies a stored upload.
type Reference struct {
	Path        string `json:"path"`
	URL         string `json:"url,omitempty"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// String returns the value persisted for the file field.
func (r Reference) String() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}

// LocalOption configures LocalStorage.
type LocalOption func(*LocalStorage)

// WithBaseURL prefixes stored references with a public URL.
func WithBaseURL(base string) LocalOption {
	return func(s *LocalStorage) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithClock overrides the clock used to build dated directories.
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// LocalStorage stores uploads below a root directory using a dated layout
// (root/2006/01/<uuid>-<name>).
type LocalStorage struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocalStorage creates the root directory when missing.
func NewLocalStorage(root string, options ...LocalOption) (*LocalStorage, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("upload: storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("upload: create storage root: %w", err)
	}
	s := &LocalStorage{root: root, now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName strips directory components and characters outside a
// conservative set.
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeNameChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, ".-")
	if base == "" {
		return "upload"
	}
	return base
}

// Accept re-checks the name, then moves the temporary file into place.
func (s *LocalStorage) Accept(ctx context.Context, file File) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}
	if Dangerous(file.Name) {
		return Reference{}, ErrDangerousName
	}
	if file.TmpPath == "" {
		return Reference{}, fmt.Errorf("upload: temporary path is required")
	}

	now := s.now()
	rel := path.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+"-"+SanitizeName(file.Name))
	dest := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Reference{}, fmt.Errorf("upload: create directory: %w", err)
	}
	if err := moveFile(file.TmpPath, dest); err != nil {
		return Reference{}, fmt.Errorf("upload: store %s: %w", file.Name, err)
	}

	ref := Reference{
		Path:        rel,
		Name:        file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
	}
	if s.baseURL != "" {
		ref.URL = s.baseURL + "/" + rel
	}
	return ref, nil
}

func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// Rename fails across devices; fall back to copy and remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
