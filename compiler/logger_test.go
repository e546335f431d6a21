package compiler

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, functionTrace []string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l, err := NewLogger(base, functionTrace)
	require.NoError(t, err)
	return l, &buf
}

func TestLoggerTracesMatchingStageOnly(t *testing.T) {
	l, buf := newTestLogger(t, []string{"^schedule.*"})

	l.Enter("schedule")
	l.Enter("lower")

	out := buf.String()
	assert.True(t, strings.Contains(out, "stage=schedule"))
	assert.False(t, strings.Contains(out, "stage=lower"))
}

func TestLoggerNoPatternsTracesNothing(t *testing.T) {
	l, buf := newTestLogger(t, nil)

	l.Enter("schedule_and_lower")
	l.Exit("schedule_and_lower")

	assert.Empty(t, buf.String())
}

func TestLoggerRejectsInvalidPattern(t *testing.T) {
	_, err := NewLogger(nil, []string{"("})
	assert.Error(t, err)
}

func TestLoggerErrorAlwaysLogs(t *testing.T) {
	l, buf := newTestLogger(t, nil)

	l.Error("lower", assert.AnError)

	assert.Contains(t, buf.String(), "stage failed")
}
