// Package simlog is the simulator's structured logging wrapper, grounded
// on the teacher's log package idiom: a terminal-aware handler choice
// built on go-colorable/go-isatty the same way the teacher's log package
// picks a handler (see DESIGN.md). Both branches emit plain slog text;
// no ANSI color codes are written. Every package in
// this module logs through simlog rather than fmt.Println/log.Print.
package simlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// New returns a logger with name recorded as its "component" attribute —
// one per package/node, the way the teacher's modules each hold their own
// named sub-logger rather than sharing a single unscoped root logger.
func New(component string) *slog.Logger {
	return Default().With("component", component)
}

// NewNode is New scoped additionally to a node id, the common case: every
// long-lived simulator component (rate limiter, P2P node, mining driver,
// HoneyBadger coordinator) is one instance per node.
func NewNode(component string, nodeID int) *slog.Logger {
	return Default().With("component", component, "node", nodeID)
}

var (
	currentWriter io.Writer = os.Stdout
	currentLevel            = slog.LevelInfo
	defaultLogger            = newHandlerLogger(currentWriter, currentLevel)
)

// Default returns the package-wide root logger. SetOutput can redirect it.
func Default() *slog.Logger { return defaultLogger }

// SetOutput replaces the destination of the default logger, re-deriving
// terminal-awareness for the new writer.
func SetOutput(w io.Writer) {
	currentWriter = w
	defaultLogger = newHandlerLogger(currentWriter, currentLevel)
}

// SetLevel adjusts the minimum level the default logger emits. In
// cmd/bbsim, debug adds wiring diagnostics (each limiter's peer list),
// info is run lifecycle (run and batch start), and warn reports a failed
// batch replication.
func SetLevel(lvl slog.Level) {
	currentLevel = lvl
	defaultLogger = newHandlerLogger(currentWriter, currentLevel)
}

// newHandlerLogger routes a text handler through go-colorable.NewColorable
// when w is a terminal (go-isatty.IsTerminal; go-colorable is a
// passthrough on Unix), and writes to w directly otherwise. slog's
// TextHandler adds no color codes, so the output is the same plain text in
// both cases: the same terminal-detection shape the teacher's log package
// uses, reimplemented over log/slog rather than the teacher's
// multi-handler tree (no production log.go file survived the retrieval —
// only its test files did, see DESIGN.md).
func newHandlerLogger(w io.Writer, lvl slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(colorable.NewColorable(f), opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
