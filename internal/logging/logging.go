// Package logging builds the slog loggers used by the formengine commands.
// Every handler redacts secrets with masq before anything is written.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(slog.New(slog.DiscardHandler))
}

// Default returns the process wide logger.
func Default() *slog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process wide logger. Nil is ignored.
func SetDefault(logger *slog.Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// Redactor returns the ReplaceAttr filter shared by every handler. It masks
// struct fields tagged `masq:"secret"` and values under secret-looking keys.
func Redactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Secret"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("Plaintext"),
		masq.WithFieldName("Password"),
		masq.WithFieldPrefix("secret_"),
	)
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, goerr.New("invalid log level", goerr.V("level", raw))
}

// New builds a logger writing to w in format at level.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	filter := Redactor()

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       lvl,
			ReplaceAttr: filter,
		})
	case "", FormatConsole:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(lvl),
			clog.WithReplaceAttr(filter),
			clog.WithColor(isTerminal(w)),
		)
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", format))
	}
	return slog.New(handler), nil
}

// Config holds the logging flags shared by every command.
type Config struct {
	level  string
	format string
	output string
}

// Flags returns CLI flags for logging configuration
func (c *Config) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "Logging",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("FORMENGINE_LOG_LEVEL"),
			Destination: &c.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "Logging",
			Usage:       "Log format (console, json)",
			Value:       FormatConsole,
			Sources:     cli.EnvVars("FORMENGINE_LOG_FORMAT"),
			Destination: &c.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Category:    "Logging",
			Usage:       "Log output (stdout, stderr, or a file path)",
			Value:       "stderr",
			Sources:     cli.EnvVars("FORMENGINE_LOG_OUTPUT"),
			Destination: &c.output,
		},
	}
}

// Configure builds the logger from the flags and installs it as Default. The
// returned closer releases a log file when one was opened.
func (c *Config) Configure() (func(), error) {
	closer := func() {}
	var w io.Writer
	switch c.output {
	case "", "stderr":
		w = os.Stderr
	case "stdout", "-":
		w = os.Stdout
	default:
		// #nosec G304 - path is provided by the operator
		f, err := os.OpenFile(c.output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", c.output))
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	logger, err := New(w, c.format, c.level)
	if err != nil {
		closer()
		return nil, err
	}
	SetDefault(logger)
	return closer, nil
}

// LogValue keeps the flag values readable when the config itself is logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", c.level),
		slog.String("format", c.format),
		slog.String("output", c.output),
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
