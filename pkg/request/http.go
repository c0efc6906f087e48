package request

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/goliatone/go-formengine/pkg/security"
	"github.com/goliatone/go-formengine/pkg/upload"
)

// DefaultMaxMemory is the multipart memory threshold before spilling to disk.
const DefaultMaxMemory = 8 << 20

// HTTPOption configures FromHTTP.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	maxMemory int64
	tempDir   string
}

// WithMaxMemory overrides DefaultMaxMemory.
func WithMaxMemory(n int64) HTTPOption {
	return func(c *httpConfig) {
		if n > 0 {
			c.maxMemory = n
		}
	}
}

// WithTempDir sets where uploads are staged before validation.
func WithTempDir(dir string) HTTPOption {
	return func(c *httpConfig) {
		c.tempDir = dir
	}
}

// HTTP adapts an *http.Request.
type HTTP struct {
	submission bool
	values     map[string]any
	files      map[string][]upload.File
	actor      security.Actor
	staged     []string
	multipart  *multipart.Form
}

// FromHTTP parses r. POST requests are submissions; multipart bodies have
// their files staged to temporary files with sniffed content types. Call
// Cleanup once the request is done to remove staged files that were not
// moved into storage.
func FromHTTP(r *http.Request, actor security.Actor, options ...HTTPOption) (*HTTP, error) {
	cfg := httpConfig{maxMemory: DefaultMaxMemory}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	req := &HTTP{
		submission: r.Method == http.MethodPost,
		values:     make(map[string]any),
		files:      make(map[string][]upload.File),
		actor:      actor,
	}
	if !req.submission {
		return req, nil
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(cfg.maxMemory); err != nil {
			return nil, fmt.Errorf("request: parse multipart: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("request: parse form: %w", err)
	}

	for key, values := range r.PostForm {
		switch len(values) {
		case 0:
		case 1:
			req.values[key] = values[0]
		default:
			req.values[key] = append([]string(nil), values...)
		}
	}

	if r.MultipartForm != nil {
		req.multipart = r.MultipartForm
		for key, headers := range r.MultipartForm.File {
			for _, header := range headers {
				file, err := stage(header, cfg.tempDir)
				if err != nil {
					req.Cleanup()
					return nil, err
				}
				req.staged = append(req.staged, file.TmpPath)
				req.files[key] = append(req.files[key], file)
			}
		}
	}
	return req, nil
}

func (h *HTTP) IsSubmission() bool { return h.submission }

func (h *HTTP) Field(name string) (any, bool) {
	value, ok := h.values[name]
	return value, ok
}

func (h *HTTP) Values() map[string]any {
	out := make(map[string]any, len(h.values))
	for key, value := range h.values {
		out[key] = value
	}
	return out
}

func (h *HTTP) Files(name string) []upload.File {
	return append([]upload.File(nil), h.files[name]...)
}

func (h *HTTP) Actor() security.Actor { return h.actor }

// Cleanup removes staged files still present at their temporary path.
func (h *HTTP) Cleanup() {
	for _, path := range h.staged {
		_ = os.Remove(path)
	}
	h.staged = nil
	if h.multipart != nil {
		_ = h.multipart.RemoveAll()
		h.multipart = nil
	}
}

func stage(header *multipart.FileHeader, dir string) (upload.File, error) {
	src, err := header.Open()
	if err != nil {
		return upload.File{}, fmt.Errorf("request: open upload %q: %w", header.Filename, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "formengine-upload-*")
	if err != nil {
		return upload.File{}, fmt.Errorf("request: stage upload: %w", err)
	}
	defer dst.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		os.Remove(dst.Name())
		return upload.File{}, fmt.Errorf("request: read upload: %w", err)
	}
	sniff = sniff[:n]

	size := int64(n)
	if _, err := dst.Write(sniff); err != nil {
		os.Remove(dst.Name())
		return upload.File{}, fmt.Errorf("request: stage upload: %w", err)
	}
	copied, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(dst.Name())
		return upload.File{}, fmt.Errorf("request: stage upload: %w", err)
	}
	size += copied

	contentType := ""
	if n > 0 {
		contentType = http.DetectContentType(sniff)
	}
	return upload.File{
		Name:        header.Filename,
		Size:        size,
		ContentType: contentType,
		TmpPath:     dst.Name(),
	}, nil
}
