package writer

import (
	"context"
	"testing"
	"time"

	"github.com/witnz/catalogshadow/internal/queue"
)

type fakeBuilder struct {
	buf      *Buffer
	released []uint64
}

func (f *fakeBuilder) FirstBuffer() *Buffer        { return f.buf }
func (f *fakeBuilder) ReleaseBuffers(maxID uint64) { f.released = append(f.released, maxID) }

type fakeSender struct {
	sent     []BuilderMsg
	confirms []uint64
}

func (f *fakeSender) Send(msg BuilderMsg) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) PollConfirms() []uint64 {
	out := f.confirms
	f.confirms = nil
	return out
}

// mainLoop must push every message it reads onto the Delivery Queue and
// apply confirmations polled from the transport, driving confirmedScn
// and releasing the corresponding builder buffers.
func TestMainLoopWiresCreateAndConfirmMessage(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 0, 0, 0)

	buf := &Buffer{Length: 8, Data: make([]byte, 8)}
	builder := &fakeBuilder{buf: buf}
	sender := &fakeSender{confirms: []uint64{0}}

	q := queue.New(builder)
	w := New(nil, meta, q, builder, sender, time.Millisecond, 0)
	w.ctx.RequestSoftShutdown()

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one message sent, got %d", len(sender.sent))
	}
	if q.SentMessages() != 1 {
		t.Fatalf("expected CreateMessage to have run once, got SentMessages=%d", q.SentMessages())
	}
	if len(w.pending) != 0 {
		t.Fatalf("expected the pending set to be drained after confirmation, got %d entries", len(w.pending))
	}
	if q.Len() != 0 {
		t.Fatalf("expected the confirmed message to have been popped off the queue, Len=%d", q.Len())
	}
	if len(builder.released) == 0 {
		t.Fatalf("expected ReleaseBuffers to have been called on confirmation")
	}
}

// An unconfirmed message stays on the queue and never advances
// confirmedScn, so writeCheckpoint keeps no-opping.
func TestMainLoopLeavesUnconfirmedMessagesQueued(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 0, 0, 0)

	buf := &Buffer{Length: 8, Data: make([]byte, 8)}
	builder := &fakeBuilder{buf: buf}
	sender := &fakeSender{} // no confirms

	q := queue.New(builder)
	w := New(nil, meta, q, builder, sender, time.Millisecond, 0)
	w.ctx.RequestSoftShutdown()

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if q.Len() != 1 {
		t.Fatalf("expected the unconfirmed message to remain queued, Len=%d", q.Len())
	}
	if meta.ConfirmedSCN() != 0 {
		t.Fatalf("expected confirmedScn to stay at its initial value, got %d", meta.ConfirmedSCN())
	}
	if len(builder.released) != 0 {
		t.Fatalf("expected no buffer release without a confirmation, got %v", builder.released)
	}
}
