package packet

import (
	"context"
	"time"
)

// DefaultQueueCapacity bounds both the inbound and outbound queues.
const DefaultQueueCapacity = 10_000

// queue is a bounded FIFO of packets. A buffered channel serializes
// concurrent producers and consumers.
type queue struct {
	ch chan *Packet
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &queue{ch: make(chan *Packet, capacity)}
}

// put blocks while the queue is full.
func (q *queue) put(ctx context.Context, p *Packet) error {
	select {
	case q.ch <- p:
		return nil
	default:
	}

	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryPut queues p only if there is room right now.
func (q *queue) tryPut(p *Packet) bool {
	select {
	case q.ch <- p:
		return true
	default:
		return false
	}
}

// offer waits at most d for room and reports whether p was queued.
func (q *queue) offer(p *Packet, d time.Duration) bool {
	select {
	case q.ch <- p:
		return true
	default:
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case q.ch <- p:
		return true
	case <-t.C:
		return false
	}
}

// take blocks while the queue is empty.
func (q *queue) take(ctx context.Context) (*Packet, error) {
	select {
	case p := <-q.ch:
		return p, nil
	default:
	}

	select {
	case p := <-q.ch:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// poll waits at most d for a packet.
func (q *queue) poll(d time.Duration) (*Packet, bool) {
	select {
	case p := <-q.ch:
		return p, true
	default:
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case p := <-q.ch:
		return p, true
	case <-t.C:
		return nil, false
	}
}

func (q *queue) len() int {
	return len(q.ch)
}

func (q *queue) capacity() int {
	return cap(q.ch)
}
