package simlog

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSetOutputRoutesThroughPlainHandlerForNonTerminal exercises the
// non-terminal branch: a bytes.Buffer is never an *os.File, so it always
// gets the plain, uncolored handler regardless of isatty.
func TestSetOutputRoutesThroughPlainHandlerForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	New("kernel").Info("advanced", "now", "1.000000000s")

	out := buf.String()
	require.Contains(t, out, "component=kernel")
	require.Contains(t, out, "advanced")
	require.NotContains(t, out, "\x1b[", "non-terminal output must not carry ANSI escapes")
}

func TestNodeScopedLoggerCarriesBothAttributes(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	NewNode("ratelimiter", 3).Warn("queue saturated")

	out := buf.String()
	require.True(t, strings.Contains(out, "component=ratelimiter") && strings.Contains(out, "node=3"))
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelWarn)
	defer func() {
		SetLevel(slog.LevelInfo)
		SetOutput(os.Stdout)
	}()

	Default().Info("should be filtered")
	require.Empty(t, buf.String())

	Default().Warn("should appear")
	require.Contains(t, buf.String(), "should appear")
}
