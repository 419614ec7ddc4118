package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/witnz/catalogshadow/internal/dictctx"
)

type fakeCheckpointer struct {
	calls      int
	forceCalls int
	err        error
}

func (f *fakeCheckpointer) WriteCheckpoint(force bool) error {
	f.calls++
	if force {
		f.forceCalls++
	}
	return f.err
}

type fakeReplicator struct {
	finished bool
}

func (f *fakeReplicator) Finished() bool { return f.finished }

func TestRunStopsOnHardShutdownBeforeFirstWrite(t *testing.T) {
	ctx := dictctx.New(nil)
	ctx.RequestHardShutdown()
	cp := &fakeCheckpointer{}
	loop := New(ctx, cp, nil, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cp.calls != 0 {
		t.Fatalf("expected no checkpoint writes after immediate hard shutdown, got %d", cp.calls)
	}
}

func TestRunPerformsForcedWriteOnSoftShutdownWhenFinished(t *testing.T) {
	ctx := dictctx.New(nil)
	ctx.RequestSoftShutdown()
	cp := &fakeCheckpointer{}
	rep := &fakeReplicator{finished: true}
	loop := New(ctx, cp, rep, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cp.forceCalls != 1 {
		t.Fatalf("expected exactly one forced checkpoint write, got %d", cp.forceCalls)
	}
}

func TestRunWaitsForReplicatorBeforeSoftShutdownExit(t *testing.T) {
	ctx := dictctx.New(nil)
	ctx.RequestSoftShutdown()
	cp := &fakeCheckpointer{}
	rep := &fakeReplicator{finished: false}
	loop := New(ctx, cp, rep, nil)

	runCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := loop.Run(runCtx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cp.forceCalls != 0 {
		t.Fatalf("expected no forced write while replicator is unfinished, got %d", cp.forceCalls)
	}
}

func TestRunEscalatesFatalErrorToHardShutdown(t *testing.T) {
	ctx := dictctx.New(nil)
	cp := &fakeCheckpointer{err: errors.New("disk full")}
	loop := New(ctx, cp, nil, nil)

	err := loop.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the fatal error to propagate")
	}
	if !ctx.HardShutdown() {
		t.Fatalf("expected hard shutdown to be requested after a fatal checkpoint error")
	}
}

func TestWakeUpDoesNotBlockWhenAlreadySignalled(t *testing.T) {
	ctx := dictctx.New(nil)
	cp := &fakeCheckpointer{}
	loop := New(ctx, cp, nil, nil)
	loop.WakeUp()
	loop.WakeUp() // second call must not block even though the channel is full
}
