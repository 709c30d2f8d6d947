package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in  string
		exp slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	} {
		l, err := parseLevel(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.exp, l, tc.in)
	}
	_, err := parseLevel("verbose")
	require.Error(t, err)
}

func TestJSONLogger(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	l, err := NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, "json")
	require.NoError(t, err)

	for _, tc := range []struct {
		log   func(context.Context, logMod, string, ...any)
		level string
	}{
		{l.Debug, "DEBUG"},
		{l.Log, "INFO"},
		{l.Warn, "WARN"},
		{l.Error, "ERROR"},
	} {
		buf.Reset()
		tc.log(ctx, "create", "created", "path", "out-0.txt")
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, tc.level, entry["level"])
		require.Equal(t, "created", entry["msg"])
		require.Equal(t, "create", entry["mod"])
		require.Equal(t, "out-0.txt", entry["path"])
	}

	_, err = NewLogger(&buf, nil, "yaml")
	require.Error(t, err)
}
