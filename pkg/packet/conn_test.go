package packet

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cossteam/dgram/pkg/transport/udp"
)

type datagram struct {
	payload []byte
	addr    *udp.Addr
}

// fakeConn is an in-memory udp.Conn. Tests push inbound datagrams on
// inbound and read what the writer sent from outbound.
type fakeConn struct {
	inbound  chan datagram
	outbound chan datagram

	mu       sync.Mutex
	writeErr error
	readErr  error

	timeout atomic.Int64
	closed  atomic.Bool
	reads   atomic.Int64
}

var _ udp.Conn = &fakeConn{}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan datagram, 64),
		outbound: make(chan datagram, 64),
	}
}

func (f *fakeConn) LocalAddr() (*udp.Addr, error) {
	return udp.NewAddr(net.IPv4(127, 0, 0, 1), 4000), nil
}

func (f *fakeConn) ReadFrom(b []byte) (int, *udp.Addr, error) {
	f.reads.Add(1)
	f.mu.Lock()
	readErr := f.readErr
	f.mu.Unlock()
	if readErr != nil {
		return 0, nil, readErr
	}

	t := time.NewTimer(f.Timeout())
	defer t.Stop()

	select {
	case d := <-f.inbound:
		n := copy(b, d.payload)
		return n, d.addr, nil
	case <-t.C:
		return 0, nil, os.ErrDeadlineExceeded
	}
}

func (f *fakeConn) WriteTo(b []byte, addr *udp.Addr) error {
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.outbound <- datagram{payload: append([]byte(nil), b...), addr: addr.Copy()}
	return nil
}

func (f *fakeConn) Timeout() time.Duration {
	return time.Duration(f.timeout.Load())
}

func (f *fakeConn) SetTimeout(d time.Duration) error {
	if d < 0 {
		return errors.New("negative timeout")
	}
	f.timeout.Store(int64(d))
	return nil
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeConn) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

func (f *fakeConn) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func peer(port uint16) *udp.Addr {
	return udp.NewAddr(net.IPv4(127, 0, 0, 1), port)
}
