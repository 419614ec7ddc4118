package writer

import (
	"context"
	"time"

	"github.com/witnz/catalogshadow/internal/dictctx"
	"github.com/witnz/catalogshadow/internal/dictexc"
	"github.com/witnz/catalogshadow/internal/queue"
)

// align8 rounds length up to the next multiple of 8 (§6: "message byte
// lengths are 8-byte aligned on the wire").
func align8(length uint64) uint64 {
	return (length + 7) &^ 7
}

// BuilderMsg is one record read off a builder buffer (§6).
type BuilderMsg struct {
	ID      uint64
	QueueID uint64
	SCN     uint64
	Length  uint64
	Data    []byte
}

// Buffer is one node of the builder's ring (§6): producer-written
// Length bytes followed by the fixed Data region, with Next pointing
// at the following buffer once this one fills.
type Buffer struct {
	Length uint64
	Data   []byte
	Next   *Buffer
}

// Builder is the single-producer side of the ring the writer drains;
// it is satisfied by whatever upstream applier fills buffers with
// finished messages (out of scope for this engine, per spec.md §1).
type Builder interface {
	FirstBuffer() *Buffer
	// ReleaseBuffers frees every buffer whose messages have all been
	// confirmed up to and including maxID, called by the Delivery
	// Queue on confirmation (queue.Releaser).
	ReleaseBuffers(maxID uint64)
}

// Sender delivers a pending message to the external transport (out of
// scope; narrow interface only, per spec.md §1). PollConfirms reports
// the ids of messages the transport has acknowledged since the last
// call; the Delivery Queue is single-threaded and owned by C5, so
// confirmations are only ever applied here, on the writer's own
// goroutine (§5 "via pollQueue"), never from a callback on another
// thread.
type Sender interface {
	Send(msg BuilderMsg) error
	PollConfirms() []uint64
}

// Writer runs the outer/inner loop pair described in §4.6: the outer
// loop re-reads the checkpoint and retries mainLoop on network error;
// mainLoop walks the builder ring, enqueues or merges crossing
// messages, and checkpoints after every send.
type Writer struct {
	ctx         *dictctx.Ctx
	meta        *Metadata
	queue       *queue.Queue
	builder     Builder
	sender      Sender
	pollWait    time.Duration
	maxQueueLen int
	pending     map[uint64]*queue.Message
}

func New(ctx *dictctx.Ctx, meta *Metadata, q *queue.Queue, builder Builder, sender Sender, pollInterval time.Duration, maxQueueLen int) *Writer {
	if ctx == nil {
		ctx = dictctx.New(nil)
	}
	return &Writer{ctx: ctx, meta: meta, queue: q, builder: builder, sender: sender, pollWait: pollInterval, maxQueueLen: maxQueueLen, pending: make(map[uint64]*queue.Message)}
}

// Run is the outer loop (§4.6): read the checkpoint, then run mainLoop
// until it returns, running it again after a NetworkException and
// returning any other error. A nil return from mainLoop (shutdown or
// ctx cancellation) ends Run with nil.
func (w *Writer) Run(ctx context.Context) error {
	if _, err := w.meta.ReadCheckpoint(); err != nil {
		return err
	}
	w.queue.SortQueue(nil)

	for {
		err := w.mainLoop(ctx)
		if err == nil {
			return nil
		}
		if dictexc.IsNetwork(err) {
			w.ctx.Warn(0, "writer: transport error, reconnecting: "+err.Error())
			continue
		}
		return err
	}
}

// mainLoop walks the builder's buffer ring, sending every message it
// finds and checkpointing after each send (§4.6), until shutdown is
// requested or ctx is cancelled. When the ring is exhausted it returns
// after a final forced checkpoint if soft shutdown is set; otherwise it
// waits pollWait and walks again from the builder's first buffer.
func (w *Writer) mainLoop(ctx context.Context) error {
	buf := w.builder.FirstBuffer()
	offset := uint64(0)

	for {
		if w.ctx.HardShutdown() {
			return nil
		}
		if buf == nil {
			if w.ctx.SoftShutdown() {
				for _, id := range w.sender.PollConfirms() {
					if confirmed, ok := w.pending[id]; ok {
						w.queue.ConfirmMessage(confirmed)
						delete(w.pending, id)
					}
				}
				w.meta.SetConfirmedSCN(w.queue.ConfirmedSCN())
				return w.meta.WriteCheckpoint(true)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollWait):
			}
			buf = w.builder.FirstBuffer()
			continue
		}

		if offset >= buf.Length {
			buf = buf.Next
			offset = 0
			continue
		}

		msg, consumed, crossesBoundary := readMessage(buf, offset)
		if crossesBoundary {
			merged, next, nextOffset := mergeAcrossBoundary(buf, offset, msg.Length)
			msg.Data = merged
			buf, offset = next, nextOffset
		} else {
			offset += consumed
		}

		qmsg := &queue.Message{ID: msg.ID, QueueID: msg.QueueID, SCN: msg.SCN}
		w.queue.CreateMessage(qmsg)
		w.pending[msg.ID] = qmsg

		if err := w.sender.Send(msg); err != nil {
			return err
		}

		// Poll for client confirms (§4.6) and apply them to the queue;
		// confirmation always runs here, on C5's own goroutine, never
		// from a transport callback (§5).
		for _, id := range w.sender.PollConfirms() {
			if confirmed, ok := w.pending[id]; ok {
				w.queue.ConfirmMessage(confirmed)
				delete(w.pending, id)
			}
		}
		w.meta.SetConfirmedSCN(w.queue.ConfirmedSCN())
		if err := w.meta.WriteCheckpoint(false); err != nil {
			return err
		}

		if w.maxQueueLen > 0 && w.queue.Len() >= w.maxQueueLen {
			time.Sleep(w.pollWait)
		}
	}
}

// readMessage reads one (BuilderMsg, data) record at offset within
// buf. crossesBoundary reports whether the aligned length overruns
// what remains in buf, in which case the caller must merge.
func readMessage(buf *Buffer, offset uint64) (msg BuilderMsg, consumed uint64, crossesBoundary bool) {
	aligned := align8(buf.Length - offset)
	if offset+aligned > uint64(len(buf.Data)) {
		return BuilderMsg{}, 0, true
	}
	return BuilderMsg{Length: buf.Length - offset, Data: buf.Data[offset : offset+(buf.Length-offset)]}, aligned, false
}

// mergeAcrossBoundary allocates a contiguous copy of a message that
// spans buf and one or more of its successors (the ALLOCATED case in
// §4.6), returning the resulting message's data plus the ring
// position immediately after it.
func mergeAcrossBoundary(buf *Buffer, offset, length uint64) (data []byte, next *Buffer, nextOffset uint64) {
	out := make([]byte, 0, length)
	remaining := length
	cur := buf
	curOffset := offset
	for remaining > 0 && cur != nil {
		avail := cur.Length - curOffset
		if avail > remaining {
			avail = remaining
		}
		out = append(out, cur.Data[curOffset:curOffset+avail]...)
		remaining -= avail
		curOffset += avail
		if curOffset >= cur.Length {
			cur = cur.Next
			curOffset = 0
		}
	}
	return out, cur, curOffset
}
