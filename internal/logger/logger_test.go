package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandler_Format checks the line layout and attribute rendering.
func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.With("digest", "abc").Info("published", "package", "0x2")

	line := strings.TrimSpace(buf.String())
	re := regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} \[INF\] published digest=abc package=0x2$`)
	assert.Regexp(t, re, line)
}

// TestHandler_Level drops records below the minimum level.
func TestHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("hidden")
	log.Debug("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[WRN] shown")
}

// TestHandler_Group prefixes keys inside a group.
func TestHandler_Group(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	log.WithGroup("rpc").Info("call", "method", "sui_getTransactionBlock")

	assert.Contains(t, buf.String(), "rpc.method=sui_getTransactionBlock")
}

// TestParseLevel maps names to levels.
func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
