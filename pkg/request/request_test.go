package request

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formengine/pkg/security"
)

func TestFromHTTPGetIsNotSubmission(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/forms/settings?enable=1", nil)
	req, err := FromHTTP(r, security.Actor{ID: "1"})
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	if req.IsSubmission() {
		t.Fatalf("GET must not be a submission")
	}
	if _, ok := req.Field("enable"); ok {
		t.Fatalf("query values must not be read as fields")
	}
}

func TestFromHTTPURLEncoded(t *testing.T) {
	t.Parallel()

	body := url.Values{"name": {"Ann"}, "tags": {"a", "b"}}.Encode()
	r := httptest.NewRequest(http.MethodPost, "/forms/settings", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := FromHTTP(r, security.Actor{ID: "1"})
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	want := map[string]any{"name": "Ann", "tags": []string{"a", "b"}}
	if diff := cmp.Diff(want, req.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if req.Actor().ID != "1" {
		t.Fatalf("actor not carried")
	}
}

func TestFromHTTPMultipartStagesFiles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("title", "Hello")
	part, _ := writer.CreateFormFile("avatar", "photo.jpg")
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 600)...)
	_, _ = part.Write(jpeg)
	_ = writer.Close()

	r := httptest.NewRequest(http.MethodPost, "/forms/settings", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())

	req, err := FromHTTP(r, security.Actor{}, WithTempDir(t.TempDir()))
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	files := req.Files("avatar")
	if len(files) != 1 {
		t.Fatalf("expected one staged file, got %d", len(files))
	}
	file := files[0]
	if file.Name != "photo.jpg" || file.Size != int64(len(jpeg)) || file.ContentType != "image/jpeg" {
		t.Fatalf("unexpected staged file %+v", file)
	}
	if _, err := os.Stat(file.TmpPath); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if value, _ := req.Field("title"); value != "Hello" {
		t.Fatalf("unexpected title %v", value)
	}

	req.Cleanup()
	if _, err := os.Stat(file.TmpPath); !os.IsNotExist(err) {
		t.Fatalf("Cleanup must remove staged files")
	}
}

func TestCleanupRemovesSpilledMultipartParts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("avatar", "photo.jpg")
	_, _ = part.Write(append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 4096)...))
	_ = writer.Close()

	r := httptest.NewRequest(http.MethodPost, "/forms/settings", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())

	req, err := FromHTTP(r, security.Actor{}, WithTempDir(t.TempDir()), WithMaxMemory(1))
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	header := r.MultipartForm.File["avatar"][0]
	spilled, err := header.Open()
	if err != nil {
		t.Fatalf("open spilled part: %v", err)
	}
	_ = spilled.Close()

	req.Cleanup()
	if f, err := header.Open(); err == nil {
		_ = f.Close()
		t.Fatalf("Cleanup must remove the parser's temporary files")
	}
}

func TestStaticRequestCopies(t *testing.T) {
	t.Parallel()

	s := Static{Submission: true, Data: map[string]any{"a": "1"}}
	values := s.Values()
	values["a"] = "2"
	if value, _ := s.Field("a"); value != "1" {
		t.Fatalf("Values must return a copy")
	}
}
