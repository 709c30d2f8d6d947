package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Logger provides structured logging.
type Logger struct {
	l *slog.Logger
}

type logMod string

type LogFlags struct {
	LogFile   string `subcmd:"log-file,-,file to write structured logs to; a new incrementally named file is created for every run and - means stderr"`
	LogLevel  string `subcmd:"log-level,info,log level filter: debug or info or warn or error"`
	LogFormat string `subcmd:"log-format,json,log format: json or text"`
}

func NewLogger(file io.Writer, opts *slog.HandlerOptions, format string) (*Logger, error) {
	var h slog.Handler
	switch format {
	case "", "json":
		h = slog.NewJSONHandler(file, opts)
	case "text":
		h = slog.NewTextHandler(file, opts)
	default:
		return nil, fmt.Errorf("unsupported log format: %q", format)
	}
	return &Logger{l: slog.New(h)}, nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if len(level) == 0 {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %v", level, err)
	}
	return l, nil
}

func (l *Logger) Debug(ctx context.Context, module logMod, format string, args ...any) {
	args = append([]any{"mod", module}, args...)
	l.l.Log(ctx, slog.LevelDebug, format, args...)
}

func (l *Logger) Log(ctx context.Context, module logMod, format string, args ...any) {
	args = append([]any{"mod", module}, args...)
	l.l.Log(ctx, slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(ctx context.Context, module logMod, format string, args ...any) {
	args = append([]any{"mod", module}, args...)
	l.l.Log(ctx, slog.LevelWarn, format, args...)
}

func (l *Logger) Error(ctx context.Context, module logMod, format string, args ...any) {
	args = append([]any{"mod", module}, args...)
	l.l.Log(ctx, slog.LevelError, format, args...)
}
