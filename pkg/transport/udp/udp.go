package udp

import (
	"net"
	"strconv"
)

// MaxPort is the highest valid UDP port.
const MaxPort = 65535

type Addr struct {
	IP   net.IP
	Port uint16
}

func NewAddr(ip net.IP, port uint16) *Addr {
	addr := Addr{IP: make([]byte, net.IPv6len), Port: port}
	copy(addr.IP, ip.To16())
	return &addr
}

// FromUDPAddr copies a *net.UDPAddr into an Addr. It returns nil for a nil input.
func FromUDPAddr(ua *net.UDPAddr) *Addr {
	if ua == nil {
		return nil
	}
	addr := &Addr{IP: make(net.IP, len(ua.IP)), Port: uint16(ua.Port)}
	copy(addr.IP, ua.IP)
	return addr
}

// ResolveIP resolves host to a single IP address, preferring IPv4.
func ResolveIP(host string) (net.IP, error) {
	ipAddr, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return nil, err
	}
	return ipAddr.IP, nil
}

// ValidPort reports whether port is within [0, MaxPort].
func ValidPort(port int) bool {
	return port >= 0 && port <= MaxPort
}

func (a *Addr) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

func (a *Addr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{
		IP:   a.IP,
		Port: int(a.Port),
	}
}

func (a *Addr) Copy() *Addr {
	if a == nil {
		return nil
	}

	nu := Addr{
		Port: a.Port,
		IP:   make(net.IP, len(a.IP)),
	}

	copy(nu.IP, a.IP)
	return &nu
}

func (a *Addr) Equals(t *Addr) bool {
	if t == nil || a == nil {
		return t == nil && a == nil
	}
	return a.IP.Equal(t.IP) && a.Port == t.Port
}
