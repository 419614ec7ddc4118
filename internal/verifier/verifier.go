// Package verifier implements the schema-equality protocol as a
// first-class, testable operation: it rebuilds a fresh catalog
// snapshot from a live source and compares it against the shadow,
// directly modeled on witnz's FollowerVerifier.VerifyHashEntry
// mismatch-detected branch (mismatch -> alert -> optional shutdown),
// generalized from a hash comparison to the structural Compare.
package verifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/witnz/catalogshadow/internal/alert"
	"github.com/witnz/catalogshadow/internal/catalog"
)

// LiveSource builds a fresh catalog snapshot from whatever live
// dictionary the engine is shadowing. The pgx-backed implementation in
// this package stands in for a real Oracle dictionary query (§ Verifier
// module, SPEC_FULL.md) — a redo-log source has no equivalent "query
// the current state" operation, so this is demonstration tooling, not
// part of the redo path.
type LiveSource interface {
	Snapshot(ctx context.Context) (*catalog.Catalog, error)
}

// Verifier runs one-shot or periodic Verify calls, optionally alerting
// and shutting down on mismatch.
type Verifier struct {
	logger       *slog.Logger
	alerts       *alert.Manager
	shutdownFunc func() error
	autoShutdown bool
}

func New(logger *slog.Logger, alerts *alert.Manager, shutdownFunc func() error, autoShutdown bool) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, alerts: alerts, shutdownFunc: shutdownFunc, autoShutdown: autoShutdown}
}

// Verify builds a fresh catalog from source and compares it against
// shadow (P4). On mismatch it logs at Error level and, if configured,
// sends a fatal alert and optionally shuts the engine down — the
// leader is authoritative, the shadow self-terminates.
func (v *Verifier) Verify(ctx context.Context, shadow *catalog.Catalog, source LiveSource) (bool, string, error) {
	fresh, err := source.Snapshot(ctx)
	if err != nil {
		return false, "", fmt.Errorf("build comparison snapshot: %w", err)
	}

	ok, msg := shadow.Compare(fresh)
	if ok {
		v.logger.Debug("schema verification succeeded")
		return true, "", nil
	}

	v.logger.Error("schema mismatch detected between shadow and live source", "detail", msg)

	if v.alerts != nil {
		v.alerts.SendFatalAlert("schema mismatch detected",
			fmt.Sprintf("catalog shadow diverged from live source. Leader is authority. %s", msg))
	}

	if v.autoShutdown && v.shutdownFunc != nil {
		v.logger.Warn("auto-shutdown enabled, initiating shutdown")
		if err := v.shutdownFunc(); err != nil {
			return false, msg, fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return false, msg, nil
}
