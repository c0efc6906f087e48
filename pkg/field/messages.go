package field

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goliatone/go-formengine/pkg/upload"
)

// MessageRequired is reported for a missing required value.
const MessageRequired = "required"

const (
	messageInvalidOption   = "is not an allowed option"
	messageInvalidNumber   = "must be a number"
	messageInvalidEmail    = "must be a valid email address"
	messageInvalidURL      = "must be a valid URL"
	messageInvalidColor    = "must be a hex colour such as #336699"
	messageInvalidBoolean  = "must be checked or unchecked"
	messagePatternMismatch = "does not match the expected format"
	messageSingleFile      = "only one file may be uploaded"
	messageSingleValue     = "only one value may be selected"
)

func messageTooShort(n int) string {
	return fmt.Sprintf("must be at least %d characters", n)
}

func messageTooLong(n int) string {
	return fmt.Sprintf("must be at most %d characters", n)
}

func messageBelowMin(n float64) string {
	return "must be at least " + formatNumber(n)
}

func messageAboveMax(n float64) string {
	return "must be at most " + formatNumber(n)
}

func messageStep(n float64) string {
	return "must be a multiple of " + formatNumber(n)
}

func messageTemporal(layout string) string {
	return "must be formatted as " + layout
}

func messageUpload(err error, maxSize int64) string {
	switch {
	case errors.Is(err, upload.ErrDangerousName):
		return "file type is not allowed"
	case errors.Is(err, upload.ErrNotAccepted):
		return "file type is not accepted"
	case errors.Is(err, upload.ErrTooLarge):
		return "file must be at most " + formatBytes(maxSize)
	case errors.Is(err, upload.ErrEmptyName):
		return "file name is required"
	default:
		return "file could not be accepted"
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
