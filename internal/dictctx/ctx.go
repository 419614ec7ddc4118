// Package dictctx carries the process-wide context handle shared by the
// catalog, checkpoint, queue, and writer components: shutdown flags,
// trace mask, feature thresholds, and the logger. There is no
// language-level global — every component takes a *Ctx explicitly.
package dictctx

import (
	"log/slog"
	"sync/atomic"
)

// Trace bits select which subsystems emit debug-level detail.
const TraceNone = 0

const (
	TraceDict = 1 << iota
	TraceMaterialize
	TraceQueue
	TraceWriter
)

// Ctx is passed to every long-lived component instead of being read from
// package-level state.
type Ctx struct {
	Logger *slog.Logger

	// AdaptiveSchema gates OBJ$ drops in dropUnusedMetadata that have no
	// owning USER$ row; see catalog.Catalog.DropUnusedMetadata.
	AdaptiveSchema bool

	// DisableChecks suppresses the table-level supplemental-log scan and
	// the alternate LOB discovery pass (the materializer's "system table"
	// bit-flag equivalent, set globally here for simplicity).
	DisableChecks bool

	TraceMask int

	softShutdown atomic.Bool
	hardShutdown atomic.Bool

	// warn receives human-readable warning notices raised by non-fatal
	// DataException codes (60021, 60022, 70005); nil is a valid no-op sink.
	warn func(code int, msg string)
}

// New returns a Ctx with the given logger, defaulting to slog.Default()
// when logger is nil.
func New(logger *slog.Logger) *Ctx {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ctx{Logger: logger}
}

func (c *Ctx) SetWarnSink(fn func(code int, msg string)) { c.warn = fn }

func (c *Ctx) Warn(code int, msg string) {
	if c.Logger != nil {
		c.Logger.Warn(msg, "code", code)
	}
	if c.warn != nil {
		c.warn(code, msg)
	}
}

func (c *Ctx) SoftShutdown() bool    { return c.softShutdown.Load() }
func (c *Ctx) HardShutdown() bool    { return c.hardShutdown.Load() }
func (c *Ctx) RequestSoftShutdown()  { c.softShutdown.Store(true) }
func (c *Ctx) RequestHardShutdown()  { c.hardShutdown.Store(true) }
func (c *Ctx) ShuttingDown() bool    { return c.softShutdown.Load() || c.hardShutdown.Load() }

func (c *Ctx) Traced(bit int) bool { return c.TraceMask&bit != 0 }
