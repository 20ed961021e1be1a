package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level=%q", in)
	}
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN")
	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept", "reason", "rate_limited")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["msg"])
	require.Equal(t, "rate_limited", rec["reason"])
	require.NotContains(t, rec, "stacktrace")
}

func TestNew_ErrorCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "INFO").With("correlation_id", "c-1").Error("insert failed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "c-1", rec["correlation_id"])
	require.Contains(t, rec["stacktrace"], "goroutine")
}
