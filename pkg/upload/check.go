package upload

import (
	"errors"
	"mime"
	"path"
	"strings"
)

var (
	// ErrDangerousName rejects script and executable uploads regardless of the
	// field's accept list.
	ErrDangerousName = errors.New("upload: file extension is not allowed")
	// ErrNotAccepted reports a type outside the field's accept list.
	ErrNotAccepted = errors.New("upload: file type is not accepted")
	// ErrTooLarge reports a file above the field's size cap.
	ErrTooLarge = errors.New("upload: file exceeds the maximum size")
	// ErrEmptyName reports an upload without a usable file name.
	ErrEmptyName = errors.New("upload: file name is required")
)

// dangerousExtensions are rejected anywhere in a file name, so "shell.php.jpg"
// fails as well as "shell.php".
var dangerousExtensions = map[string]struct{}{
	"php": {}, "php3": {}, "php4": {}, "php5": {}, "php7": {}, "php8": {},
	"phtml": {}, "pht": {}, "phps": {}, "phar": {},
	"cgi": {}, "pl": {}, "py": {}, "pyc": {}, "rb": {},
	"asp": {}, "aspx": {}, "ashx": {}, "asmx": {}, "jsp": {}, "jspx": {},
	"sh": {}, "bash": {}, "zsh": {}, "ksh": {}, "csh": {},
	"exe": {}, "com": {}, "bat": {}, "cmd": {}, "msi": {}, "dll": {}, "scr": {},
	"vbs": {}, "vbe": {}, "js": {}, "mjs": {}, "jse": {}, "wsf": {}, "ps1": {},
	"jar": {}, "htaccess": {}, "htpasswd": {}, "shtml": {}, "svg": {}, "svgz": {},
	"html": {}, "htm": {}, "xhtml": {},
}

// File describes an uploaded file as seen by validation. ContentType should
// be the sniffed type rather than the client-declared header.
type File struct {
	Name        string
	Size        int64
	ContentType string
	TmpPath     string
}

// Dangerous reports whether name carries a script or executable extension in
// any position.
func Dangerous(name string) bool {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, `\`, "/")))
	base = strings.TrimRight(base, ". ")
	if strings.ContainsRune(base, 0) {
		return true
	}
	parts := strings.Split(base, ".")
	for idx, part := range parts {
		if idx == 0 && len(parts) > 1 && part != "" {
			continue
		}
		if _, bad := dangerousExtensions[strings.TrimSpace(part)]; bad {
			return true
		}
	}
	return false
}

// Check validates a file against a field's accept pattern and size cap.
// The dangerous-name check always runs first.
func Check(file File, accept string, maxSize int64) error {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return ErrEmptyName
	}
	if Dangerous(name) || scriptable(file.ContentType) {
		return ErrDangerousName
	}
	if maxSize > 0 && file.Size > maxSize {
		return ErrTooLarge
	}
	if !Accepts(accept, name, file.ContentType) {
		return ErrNotAccepted
	}
	return nil
}

// scriptable reports content types browsers execute script from when served
// inline.
func scriptable(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch mediaType {
	case "image/svg+xml", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// Accepts matches a file against an HTML-style accept list such as
// "image/*,.pdf". An empty list, "*" or "*/*" accepts anything. MIME patterns
// must agree with every known type for the file: the sniffed content type and
// the type implied by its extension.
func Accepts(accept, name, contentType string) bool {
	patterns := splitAccept(accept)
	if len(patterns) == 0 {
		return true
	}

	ext := strings.ToLower(path.Ext(name))
	types := knownTypes(ext, contentType)

	for _, pattern := range patterns {
		switch {
		case pattern == "*" || pattern == "*/*":
			return true
		case strings.HasPrefix(pattern, "."):
			if ext == pattern {
				return true
			}
		default:
			if len(types) == 0 {
				continue
			}
			matched := true
			for _, candidate := range types {
				if !mimeMatches(pattern, candidate) {
					matched = false
					break
				}
			}
			if matched {
				return true
			}
		}
	}
	return false
}

func splitAccept(accept string) []string {
	var out []string
	for _, part := range strings.Split(accept, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func knownTypes(ext, contentType string) []string {
	var out []string
	if ct := baseMediaType(contentType); ct != "" && ct != "application/octet-stream" {
		out = append(out, ct)
	}
	if ext != "" {
		if byExt := baseMediaType(mime.TypeByExtension(ext)); byExt != "" {
			out = append(out, byExt)
		}
	}
	return out
}

func baseMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(mediaType)
}

func mimeMatches(pattern, candidate string) bool {
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(candidate, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == candidate
}
