// Package checkpoint is the Checkpoint Thread (C3): a single
// cooperative loop that periodically persists the writer's checkpoint
// and escalates fatal errors to a hard shutdown (§4.4).
package checkpoint

import (
	"context"
	"time"

	"github.com/witnz/catalogshadow/internal/alert"
	"github.com/witnz/catalogshadow/internal/dictctx"
	"github.com/witnz/catalogshadow/internal/dictexc"
)

const pollInterval = 100 * time.Millisecond

// Checkpointer is the narrow view of writer.Metadata this loop needs.
type Checkpointer interface {
	WriteCheckpoint(force bool) error
}

// Replicator reports whether the upstream applier has finished, which
// gates the final forced write on soft-shutdown.
type Replicator interface {
	Finished() bool
}

// Loop runs C3. wake is an externally-signalable channel: a send on
// it causes the next Run iteration to proceed immediately instead of
// waiting out the 100ms poll (metadata.wakeUp() in the original).
type Loop struct {
	ctx        *dictctx.Ctx
	checkpoint Checkpointer
	replicator Replicator
	alerts     *alert.Manager
	wake       chan struct{}
}

func New(ctx *dictctx.Ctx, checkpoint Checkpointer, replicator Replicator, alerts *alert.Manager) *Loop {
	if ctx == nil {
		ctx = dictctx.New(nil)
	}
	return &Loop{ctx: ctx, checkpoint: checkpoint, replicator: replicator, alerts: alerts, wake: make(chan struct{}, 1)}
}

// WakeUp triggers the next iteration immediately instead of waiting
// out the rest of the current 100ms window.
func (l *Loop) WakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes the loop until ctx is cancelled or a hard shutdown is
// requested, whichever comes first. Fatal data/memory errors from
// writeCheckpoint escalate to hard shutdown and a fatal alert before
// returning.
func (l *Loop) Run(runCtx context.Context) error {
	for {
		if l.ctx.HardShutdown() {
			return nil
		}

		if err := l.checkpoint.WriteCheckpoint(false); err != nil {
			return l.escalate(err)
		}

		if l.ctx.SoftShutdown() && (l.replicator == nil || l.replicator.Finished()) {
			if err := l.checkpoint.WriteCheckpoint(true); err != nil {
				return l.escalate(err)
			}
			return nil
		}

		select {
		case <-runCtx.Done():
			return nil
		case <-l.wake:
		case <-time.After(pollInterval):
		}
	}
}

// escalate converts a RuntimeException (resource failure) or any
// other non-network error into a hard shutdown, sending a fatal alert
// before returning the error to the caller. Network exceptions don't
// apply here — writeCheckpoint never raises one.
func (l *Loop) escalate(err error) error {
	l.ctx.RequestHardShutdown()
	if l.alerts != nil {
		msg := err.Error()
		if re, ok := err.(*dictexc.RuntimeException); ok {
			msg = re.Error()
		}
		l.alerts.SendFatalAlert("checkpoint thread", "fatal error, hard shutdown: "+msg)
	}
	return err
}
