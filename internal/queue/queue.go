// Package queue is the Delivery Queue (C4): a min-heap keyed by
// message id, tracking out-of-order confirmation and in-order SCN
// advancement (§4.5).
package queue

// Releaser receives the highest queueId freed by a confirmation pass,
// mirroring builder.releaseBuffers(maxId) in the original Writer.
type Releaser interface {
	ReleaseBuffers(maxID uint64)
}

// Message is a queued, in-flight delivery unit. Confirmed and
// Allocated are the two flag bits the original tracks in a bitset;
// Allocated copies are freed as soon as they're confirmed.
type Message struct {
	ID        uint64
	QueueID   uint64
	SCN       uint64
	Confirmed bool
	Allocated bool
}

// Queue is single-threaded by design (§5 "owned by C5"); it does no
// internal locking.
type Queue struct {
	heap         []*Message
	releaser     Releaser
	maxQueueSize int
	sentMessages uint64
	confirmedScn uint64
}

func New(releaser Releaser) *Queue {
	return &Queue{releaser: releaser}
}

func (q *Queue) Len() int { return len(q.heap) }

func (q *Queue) ConfirmedSCN() uint64 { return q.confirmedScn }

func (q *Queue) MaxQueueSize() int { return q.maxQueueSize }

func (q *Queue) SentMessages() uint64 { return q.sentMessages }

func less(a, b *Message) bool { return a.ID < b.ID }

// CreateMessage pushes msg onto the heap, bubbling it up by id, and
// records queue-size/sent-message counters.
func (q *Queue) CreateMessage(msg *Message) {
	q.heap = append(q.heap, msg)
	q.siftUp(len(q.heap) - 1)
	if len(q.heap) > q.maxQueueSize {
		q.maxQueueSize = len(q.heap)
	}
	q.sentMessages++
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(q.heap[i], q.heap[parent]) {
			return
		}
		q.heap[i], q.heap[parent] = q.heap[parent], q.heap[i]
		i = parent
	}
}

// siftDown restores the heap property at root after the last element
// has replaced it (§4.5: "picks the smaller child; the last element
// replaces the root and sifts").
func (q *Queue) siftDown(i int) {
	n := len(q.heap)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && less(q.heap[left], q.heap[smallest]) {
			smallest = left
		}
		if right < n && less(q.heap[right], q.heap[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		q.heap[i], q.heap[smallest] = q.heap[smallest], q.heap[i]
		i = smallest
	}
}

// pop removes and returns the heap root (B4: handles size 1 and 2
// without special-casing, since siftDown on an empty remainder is a
// no-op and removing the last element leaves an empty heap).
func (q *Queue) pop() *Message {
	n := len(q.heap)
	root := q.heap[0]
	q.heap[0] = q.heap[n-1]
	q.heap = q.heap[:n-1]
	if len(q.heap) > 0 {
		q.siftDown(0)
	}
	return root
}

// ConfirmMessage marks msg CONFIRMED, frees its allocated copy if
// any, then drains the heap root while it is confirmed, advancing
// confirmedScn to each popped SCN and tracking the max queueId
// popped; finally releases builder buffers up to that id (P5).
func (q *Queue) ConfirmMessage(msg *Message) {
	msg.Confirmed = true
	msg.Allocated = false

	var maxID uint64
	released := false
	for len(q.heap) > 0 && q.heap[0].Confirmed {
		popped := q.pop()
		q.confirmedScn = popped.SCN
		if popped.QueueID > maxID {
			maxID = popped.QueueID
		}
		released = true
	}
	if released && q.releaser != nil {
		q.releaser.ReleaseBuffers(maxID)
	}
}

// SortQueue rebuilds the heap from an unordered slice, used after a
// checkpoint reload re-enqueues in-flight messages out of id order.
func (q *Queue) SortQueue(messages []*Message) {
	q.heap = append(q.heap[:0], messages...)
	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.siftDown(i)
	}
}
