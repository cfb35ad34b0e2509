package packet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/cossteam/dgram/pkg/controller"
	"github.com/cossteam/dgram/pkg/transport/udp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ controller.Runnable = &Transport{}

// Transport owns a bound Conn and the Reader and Writer sharing it.
// Callers exchange packets through Enqueue and Dequeue while Start runs.
type Transport struct {
	id     string
	logger *zap.Logger
	conn   udp.Conn

	reader *Reader
	writer *Writer

	// Default destination; nil IP and PortUnset mean none.
	destIP   net.IP
	destPort int

	started atomic.Bool
}

// New validates opts, resolves the default destination host and binds a
// local endpoint on opts.ListenPort.
func New(logger *zap.Logger, opts Options) (*Transport, error) {
	if err := validateDestination(opts); err != nil {
		return nil, err
	}
	if !udp.ValidPort(opts.ListenPort) {
		return nil, fmt.Errorf("%w: listen port %d must be in 0-%d", ErrInvalidArgument, opts.ListenPort, udp.MaxPort)
	}

	destIP, err := resolveDestination(opts.DestinationHost)
	if err != nil {
		return nil, err
	}

	conn, err := udp.NewGenericListener(logger, opts.ListenIP, opts.ListenPort)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %w", ErrBind, opts.ListenPort, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetTimeout(timeout); err != nil {
		conn.Close()
		return nil, err
	}

	t, err := newTransport(logger, conn, destIP, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewWithConn builds a Transport on an already bound conn. opts.ListenIP
// and opts.ListenPort are ignored. The Transport closes conn when Start
// returns.
func NewWithConn(logger *zap.Logger, conn udp.Conn, opts Options) (*Transport, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil conn", ErrInvalidArgument)
	}
	if err := validateDestination(opts); err != nil {
		return nil, err
	}

	destIP, err := resolveDestination(opts.DestinationHost)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		if err := conn.SetTimeout(opts.Timeout); err != nil {
			return nil, err
		}
	}
	return newTransport(logger, conn, destIP, opts)
}

func newTransport(logger *zap.Logger, conn udp.Conn, destIP net.IP, opts Options) (*Transport, error) {
	id := uuid.NewString()
	logger = logger.With(zap.String("transport", id))

	reader, err := NewReader(
		logger.With(zap.String("component", "reader")),
		conn,
		WithBufferSize(opts.BufferSize),
		WithQueueCapacity(opts.QueueCapacity),
	)
	if err != nil {
		return nil, err
	}

	writer, err := NewWriter(
		logger.With(zap.String("component", "writer")),
		conn,
		WithQueueCapacity(opts.QueueCapacity),
	)
	if err != nil {
		return nil, err
	}

	return &Transport{
		id:       id,
		logger:   logger,
		conn:     conn,
		reader:   reader,
		writer:   writer,
		destIP:   destIP,
		destPort: opts.DestinationPort,
	}, nil
}

func validateDestination(opts Options) error {
	if opts.DestinationHost != "" && strings.TrimSpace(opts.DestinationHost) == "" {
		return fmt.Errorf("%w: destination host is blank", ErrInvalidArgument)
	}
	if opts.DestinationPort != PortUnset && !udp.ValidPort(opts.DestinationPort) {
		return fmt.Errorf("%w: destination port %d must be in 0-%d or %d", ErrInvalidArgument, opts.DestinationPort, udp.MaxPort, PortUnset)
	}
	return nil
}

func resolveDestination(host string) (net.IP, error) {
	if host == "" {
		return nil, nil
	}
	ip, err := udp.ResolveIP(host)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrResolve, host, err)
	}
	return ip, nil
}

// Start runs the reader and writer loops and blocks until both have exited,
// then closes the conn. Cancelling ctx has the same effect as Shutdown. A
// Transport can only be started once.
func (t *Transport) Start(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport: %w", ErrStarted)
	}

	fields := []zap.Field{zap.Duration("timeout", t.conn.Timeout())}
	if addr, err := t.conn.LocalAddr(); err == nil {
		fields = append(fields, zap.Stringer("addr", addr))
	}
	if dest := t.DefaultDestination(); dest != nil {
		fields = append(fields, zap.Stringer("destination", dest))
	}
	t.logger.Info("starting transport", fields...)

	mgr := controller.NewManager(t.logger, t.reader, t.writer)
	runErr := mgr.Start(ctx)

	// Both loops have returned, nothing is blocked on the conn any more.
	closeErr := t.conn.Close()
	if closeErr != nil {
		t.logger.Error("failed to close conn", zap.Error(closeErr))
	}
	t.logger.Info("transport stopped",
		zap.Int("pending", t.writer.Pending()),
		zap.Uint64("dropped", t.reader.Dropped()),
	)
	return errors.Join(runErr, closeErr)
}

// Run is Start without an external context.
func (t *Transport) Run() error {
	return t.Start(context.Background())
}

// Shutdown stops both loops. It returns immediately; Start returns once
// the loops have noticed, within one timeout interval.
func (t *Transport) Shutdown() {
	t.reader.Stop()
	t.writer.Stop()
}

// Close releases the conn of a Transport that was never started. A started
// Transport closes its conn when Start returns.
func (t *Transport) Close() error {
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("transport: %w", ErrStarted)
	}
	t.Shutdown()
	return t.conn.Close()
}

// Enqueue fills in the default destination address and port when p lacks
// them and hands p to the writer, blocking while the outbound queue is full.
// p is left untouched when a default is missing; a nil p fails with
// ErrInvalidArgument.
func (t *Transport) Enqueue(ctx context.Context, p *Packet) error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrInvalidArgument)
	}

	fillIP := !p.HasAddress()
	if fillIP && t.destIP == nil {
		return fmt.Errorf("%w: packet has no destination address and the transport has no default host", ErrInvalidArgument)
	}

	fillPort := p.Port == PortUnset
	if fillPort && t.destPort == PortUnset {
		return fmt.Errorf("%w: packet has no destination port and the transport has no default port", ErrInvalidArgument)
	}

	if fillIP {
		p.IP = append(net.IP(nil), t.destIP...)
	}
	if fillPort {
		p.Port = t.destPort
	}
	return t.writer.Enqueue(ctx, p)
}

// Dequeue returns the oldest received packet, blocking until one arrives or
// ctx is done.
func (t *Transport) Dequeue(ctx context.Context) (*Packet, error) {
	return t.reader.Dequeue(ctx)
}

func (t *Transport) ID() string {
	return t.id
}

func (t *Transport) LocalAddr() (*udp.Addr, error) {
	return t.conn.LocalAddr()
}

// DefaultDestination returns nil unless both host and port defaults exist.
func (t *Transport) DefaultDestination() *udp.Addr {
	if t.destIP == nil || t.destPort == PortUnset {
		return nil
	}
	return &udp.Addr{IP: t.destIP, Port: uint16(t.destPort)}
}

// Pending is the number of outbound packets not yet sent.
func (t *Transport) Pending() int {
	return t.writer.Pending()
}

// Dropped is the number of inbound packets discarded on a full queue.
func (t *Transport) Dropped() uint64 {
	return t.reader.Dropped()
}

func (t *Transport) Reader() *Reader {
	return t.reader
}

func (t *Transport) Writer() *Writer {
	return t.writer
}
