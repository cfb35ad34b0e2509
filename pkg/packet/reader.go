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

// maxPutAttempts is how many times the reader tries to queue a received
// packet before dropping it.
const maxPutAttempts = 4

// minReceiveBackoff is the first pause after a failed receive.
const minReceiveBackoff = 10 * time.Millisecond

var _ controller.Runnable = &Reader{}

// Reader receives datagrams from a Conn into a bounded inbound queue.
type Reader struct {
	logger     *zap.Logger
	conn       udp.Conn
	bufferSize int
	queue      *queue

	running atomic.Bool
	started atomic.Bool
	dropped atomic.Uint64
}

// NewReader returns a Reader bound to conn. If conn has no receive timeout,
// NewReader sets it to DefaultTimeout: the loop only notices Stop when a
// receive returns.
func NewReader(logger *zap.Logger, conn udp.Conn, opts ...LoopOption) (*Reader, error) {
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

	r := &Reader{
		logger:     logger,
		conn:       conn,
		bufferSize: cfg.bufferSize,
		queue:      newQueue(cfg.capacity),
	}
	r.running.Store(true)
	return r, nil
}

// Start runs the receive loop until Stop is called or ctx is done. It
// returns once the receive in progress has returned.
func (r *Reader) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("reader: %w", ErrStarted)
	}
	stop := context.AfterFunc(ctx, r.Stop)
	defer stop()

	r.logger.Debug("reader started", zap.Int("bufferSize", r.bufferSize))
	defer r.logger.Debug("reader stopped")

	var failures int
	for r.running.Load() {
		buf := make([]byte, r.bufferSize)

		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if udp.IsTimeout(err) {
				continue
			}
			failures++
			r.receiveFailed(err, failures)
			continue
		}
		if failures > 0 {
			r.logger.Info("receive recovered", zap.Int("failures", failures))
			failures = 0
		}

		p := &Packet{Payload: buf[:n], IP: from.IP, Port: int(from.Port)}
		r.logger.Debug("received packet", zap.Stringer("packet", p))
		r.publish(p)
	}
	return nil
}

// receiveFailed logs the first failure of a streak at Error and later ones
// at Debug, then backs off. The backoff doubles per failure up to one
// interval and is skipped once the loop has been stopped.
func (r *Reader) receiveFailed(err error, failures int) {
	if failures == 1 {
		r.logger.Error("failed to receive packet", zap.Error(err))
	} else {
		r.logger.Debug("failed to receive packet", zap.Int("failures", failures), zap.Error(err))
	}

	if !r.running.Load() {
		return
	}
	time.Sleep(receiveBackoff(failures, r.interval()))
}

func receiveBackoff(failures int, limit time.Duration) time.Duration {
	d := minReceiveBackoff
	for i := 1; i < failures && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// publish queues p, giving up after maxPutAttempts waits that together span
// one receive interval. Once the reader is stopped it only makes one
// non-blocking attempt.
func (r *Reader) publish(p *Packet) {
	if !r.running.Load() {
		if !r.queue.tryPut(p) {
			r.drop(p)
		}
		return
	}

	wait := r.interval() / maxPutAttempts
	for attempt := 1; attempt <= maxPutAttempts; attempt++ {
		if r.queue.offer(p, wait) {
			return
		}
		r.logger.Warn("inbound queue full",
			zap.Int("attempt", attempt),
			zap.Int("capacity", r.queue.capacity()),
		)
		if !r.running.Load() {
			break
		}
	}
	r.drop(p)
}

func (r *Reader) drop(p *Packet) {
	r.dropped.Add(1)
	r.logger.Warn("dropped inbound packet", zap.Stringer("packet", p))
}

func (r *Reader) interval() time.Duration {
	if d := r.conn.Timeout(); d > 0 {
		return d
	}
	return DefaultTimeout
}

// Dequeue removes and returns the oldest received packet, blocking until one
// arrives or ctx is done.
func (r *Reader) Dequeue(ctx context.Context) (*Packet, error) {
	p, err := r.queue.take(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return p, nil
}

// Stop asks the loop to exit. It does not wait.
func (r *Reader) Stop() {
	r.running.Store(false)
}

func (r *Reader) Running() bool {
	return r.running.Load()
}

// Dropped is the number of received packets discarded because the inbound
// queue stayed full.
func (r *Reader) Dropped() uint64 {
	return r.dropped.Load()
}

// Len is the number of packets waiting to be dequeued.
func (r *Reader) Len() int {
	return r.queue.len()
}

func ensureTimeout(conn udp.Conn) error {
	if conn.Timeout() != 0 {
		return nil
	}
	if err := conn.SetTimeout(DefaultTimeout); err != nil {
		return fmt.Errorf("failed to set receive timeout: %w", err)
	}
	return nil
}
