package packet

import (
	"fmt"
	"net"

	"github.com/cossteam/dgram/pkg/transport/udp"
)

// PortUnset marks a packet whose destination port should be filled in by
// the transport.
const PortUnset = -1

// Packet is a single datagram. For outbound packets IP and Port name the
// destination; for inbound packets they name the sender.
//
// A Packet literal has Port 0, which is a valid port. Use NewPacket, or set
// Port to PortUnset, to leave the port for the transport to fill in.
type Packet struct {
	Payload []byte
	IP      net.IP
	Port    int
}

// NewPacket returns a packet with no destination.
func NewPacket(payload []byte) *Packet {
	return &Packet{
		Payload: payload,
		Port:    PortUnset,
	}
}

// NewPacketTo returns a packet addressed to addr. A nil addr leaves the
// destination unset.
func NewPacketTo(payload []byte, addr *udp.Addr) *Packet {
	p := NewPacket(payload)
	if addr != nil {
		p.IP = addr.Copy().IP
		p.Port = int(addr.Port)
	}
	return p
}

func (p *Packet) HasAddress() bool {
	return len(p.IP) > 0
}

func (p *Packet) HasPort() bool {
	return udp.ValidPort(p.Port)
}

// Addr returns the packet's address, or nil when either half is missing.
func (p *Packet) Addr() *udp.Addr {
	if !p.HasAddress() || !p.HasPort() {
		return nil
	}
	return &udp.Addr{IP: p.IP, Port: uint16(p.Port)}
}

func (p *Packet) validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrInvalidArgument)
	}
	if !p.HasAddress() {
		return fmt.Errorf("%w: packet destination address is not set", ErrInvalidArgument)
	}
	if !p.HasPort() {
		return fmt.Errorf("%w: packet destination port %d is not in 0-%d", ErrInvalidArgument, p.Port, udp.MaxPort)
	}
	return nil
}

func (p *Packet) String() string {
	if p == nil {
		return "<nil>"
	}
	if a := p.Addr(); a != nil {
		return fmt.Sprintf("%d bytes %s", len(p.Payload), a)
	}
	return fmt.Sprintf("%d bytes <unaddressed>", len(p.Payload))
}
