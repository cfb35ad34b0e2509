package packet

import (
	"net"
	"time"

	"github.com/cossteam/dgram/pkg/transport/udp"
)

const (
	// DefaultTimeout is the endpoint receive timeout and the writer's poll
	// interval. It bounds how long a loop takes to notice Stop.
	DefaultTimeout = 10 * time.Second

	DefaultBufferSize = 1024
)

// LoopOption configures a Reader or Writer.
type LoopOption func(*loopConfig)

type loopConfig struct {
	bufferSize int
	capacity   int
}

func defaultLoopConfig() loopConfig {
	return loopConfig{
		bufferSize: DefaultBufferSize,
		capacity:   DefaultQueueCapacity,
	}
}

// WithBufferSize sets the receive buffer size. Non-positive sizes fall back
// to DefaultBufferSize and sizes above udp.MaxDatagramSize are capped. Only
// the Reader uses it.
func WithBufferSize(size int) LoopOption {
	return func(c *loopConfig) {
		switch {
		case size <= 0:
			c.bufferSize = DefaultBufferSize
		case size > udp.MaxDatagramSize:
			c.bufferSize = udp.MaxDatagramSize
		default:
			c.bufferSize = size
		}
	}
}

// WithQueueCapacity sets the queue capacity. Non-positive capacities fall
// back to DefaultQueueCapacity.
func WithQueueCapacity(capacity int) LoopOption {
	return func(c *loopConfig) {
		if capacity > 0 {
			c.capacity = capacity
		} else {
			c.capacity = DefaultQueueCapacity
		}
	}
}

// Options configures a Transport.
type Options struct {
	// DestinationHost is the default destination host. Empty means every
	// packet must carry its own address.
	DestinationHost string

	// DestinationPort is the default destination port, or PortUnset.
	DestinationPort int

	// ListenIP is the local address to bind. Nil binds all interfaces.
	ListenIP net.IP

	// ListenPort is the local port to bind, 0 picks a free port.
	ListenPort int

	BufferSize    int
	QueueCapacity int

	// Timeout is the endpoint receive timeout. Zero keeps DefaultTimeout.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		DestinationPort: PortUnset,
		BufferSize:      DefaultBufferSize,
		QueueCapacity:   DefaultQueueCapacity,
		Timeout:         DefaultTimeout,
	}
}
