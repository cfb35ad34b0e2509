package udp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var _ Conn = &GenericConn{}

type GenericConn struct {
	*net.UDPConn
	l       *zap.Logger
	timeout atomic.Int64
}

func (u *GenericConn) LocalAddr() (*Addr, error) {
	a := u.UDPConn.LocalAddr()

	switch v := a.(type) {
	case *net.UDPAddr:
		return FromUDPAddr(v), nil

	default:
		return nil, fmt.Errorf("LocalAddr returned: %#v", a)
	}
}

func (u *GenericConn) ReadFrom(b []byte) (int, *Addr, error) {
	var deadline time.Time
	if d := u.Timeout(); d > 0 {
		deadline = time.Now().Add(d)
	}
	if err := u.UDPConn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	n, rua, err := u.ReadFromUDP(b)
	if err != nil {
		return 0, nil, err
	}
	return n, FromUDPAddr(rua), nil
}

func (u *GenericConn) WriteTo(b []byte, addr *Addr) error {
	if addr == nil {
		return errors.New("nil destination address")
	}
	_, err := u.UDPConn.WriteToUDP(b, addr.UDPAddr())
	return err
}

func (u *GenericConn) Timeout() time.Duration {
	return time.Duration(u.timeout.Load())
}

func (u *GenericConn) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative timeout: %s", d)
	}
	u.timeout.Store(int64(d))
	return nil
}

func (u *GenericConn) Close() error {
	u.l.Debug("closing udp socket")
	return u.UDPConn.Close()
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func NewGenericListener(logger *zap.Logger, ip net.IP, port int) (*GenericConn, error) {
	addr := &net.UDPAddr{IP: ip, Port: port}
	udpConn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	genericConn := &GenericConn{
		UDPConn: udpConn,
		l:       logger,
	}
	logger.Debug("udp socket bound", zap.Stringer("addr", udpConn.LocalAddr()))

	return genericConn, nil
}
