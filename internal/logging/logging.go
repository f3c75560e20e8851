// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug/info/warn/error to a slog level. Anything else is
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a text handler writing to console and, when filename is
// set, to a rotating log file. Pass a nil console to log to the file only,
// as the TUI does. The returned closer flushes the file.
func Setup(level, filename string, console io.Writer) (io.Closer, error) {
	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	var closer io.Closer = nopCloser{}
	if filename != "" {
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, err
		}
		logWriter := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		}
		writers = append(writers, logWriter)
		closer = logWriter
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(h))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
