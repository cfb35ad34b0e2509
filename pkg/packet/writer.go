package packet

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cossteam/dgram/pkg/controller"
	"github.com/cossteam/dgram/pkg/transport/udp"
	"go.uber.org/zap"
)

var _ controller.Runnable = &Writer{}

// Writer drains a bounded outbound queue onto a Conn.
type Writer struct {
	logger *zap.Logger
	conn   udp.Conn
	queue  *queue

	running atomic.Bool
	started atomic.Bool
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// NewWriter returns a Writer bound to conn. Like NewReader it sets the
// receive timeout to DefaultTimeout when conn has none. The buffer size
// option is ignored.
func NewWriter(logger *zap.Logger, conn udp.Conn, opts ...LoopOption) (*Writer, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil conn", ErrInvalidArgument)
	}
	if err := ensureTimeout(conn); err != nil {
		return nil, err
	}

	cfg := defaultLoopConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	w := &Writer{
		logger: logger,
		conn:   conn,
		queue:  newQueue(cfg.capacity),
	}
	w.running.Store(true)
	return w, nil
}

// Start runs the send loop until Stop is called or ctx is done. An idle
// loop notices Stop within one poll interval, the conn's timeout.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("writer: %w", ErrStarted)
	}
	stop := context.AfterFunc(ctx, w.Stop)
	defer stop()

	w.logger.Debug("writer started")
	defer w.logger.Debug("writer stopped", zap.Int("pending", w.queue.len()))

	for w.running.Load() {
		p, ok := w.queue.poll(w.interval())
		if !ok {
			continue
		}
		w.send(p)
	}
	return nil
}

func (w *Writer) send(p *Packet) {
	addr := p.Addr()
	if addr == nil {
		// Enqueue already refuses these; counted but not logged.
		w.failed.Add(1)
		return
	}

	if err := w.conn.WriteTo(p.Payload, addr); err != nil {
		w.failed.Add(1)
		w.logger.Error("failed to send packet", zap.Stringer("packet", p), zap.Error(err))
		return
	}
	w.sent.Add(1)
	w.logger.Debug("sent packet", zap.Stringer("packet", p))
}

func (w *Writer) interval() time.Duration {
	if d := w.conn.Timeout(); d > 0 {
		return d
	}
	return DefaultTimeout
}

// Enqueue appends p to the outbound queue, blocking while it is full. p must
// already carry its destination address and port. A nil p, like an
// unaddressed one, fails with ErrInvalidArgument.
func (w *Writer) Enqueue(ctx context.Context, p *Packet) error {
	if err := p.validate(); err != nil {
		return err
	}
	if err := w.queue.put(ctx, p); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}

// Stop asks the loop to exit. It does not wait.
func (w *Writer) Stop() {
	w.running.Store(false)
}

func (w *Writer) Running() bool {
	return w.running.Load()
}

// Pending is the number of packets waiting to be sent.
func (w *Writer) Pending() int {
	return w.queue.len()
}

func (w *Writer) Sent() uint64 {
	return w.sent.Load()
}

// Failed counts packets taken from the queue that could not be sent.
func (w *Writer) Failed() uint64 {
	return w.failed.Load()
}
