package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// New creates a preconfigured slog.Logger. When a log file is configured records are also
// written to a size-rotated file.
func New(cfg *config.Config) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg != nil && cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(levelOf(cfg))})
	return slog.New(handler), closer
}

// ParseLevel maps a configured level name onto slog levels; unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func levelOf(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.LogLevel
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
