package udp

import (
	"time"
)

// MaxDatagramSize is the largest payload a single UDP datagram can carry.
const MaxDatagramSize = 65507

// Conn is a bound datagram endpoint shared by a reader and a writer.
// Implementations must be safe for one concurrent ReadFrom and WriteTo.
type Conn interface {
	LocalAddr() (*Addr, error)

	// ReadFrom blocks for at most Timeout. When nothing arrives in time the
	// returned error satisfies IsTimeout.
	ReadFrom(b []byte) (int, *Addr, error)

	WriteTo(b []byte, addr *Addr) error

	// Timeout is the receive timeout. Zero means no timeout.
	Timeout() time.Duration
	SetTimeout(d time.Duration) error

	Close() error
}
