package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenericConn(t *testing.T) {
	logger := zap.NewNop()

	a, err := NewGenericListener(logger, net.IPv4(127, 0, 0, 1), 0)
	require.NoError(t, err)
	defer a.Close()

	b, err := NewGenericListener(logger, net.IPv4(127, 0, 0, 1), 0)
	require.NoError(t, err)
	defer b.Close()

	t.Run("LocalAddr", func(t *testing.T) {
		addr, err := a.LocalAddr()
		require.NoError(t, err)
		assert.NotZero(t, addr.Port)
		assert.True(t, addr.IP.Equal(net.IPv4(127, 0, 0, 1)))
	})

	t.Run("WriteTo and ReadFrom", func(t *testing.T) {
		require.NoError(t, b.SetTimeout(time.Second))
		bAddr, err := b.LocalAddr()
		require.NoError(t, err)
		aAddr, err := a.LocalAddr()
		require.NoError(t, err)

		require.NoError(t, a.WriteTo([]byte("hello"), bAddr))

		buf := make([]byte, 64)
		n, from, err := b.ReadFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
		assert.True(t, from.Equals(aAddr))
	})

	t.Run("ReadFrom times out", func(t *testing.T) {
		require.NoError(t, a.SetTimeout(50*time.Millisecond))
		assert.Equal(t, 50*time.Millisecond, a.Timeout())

		start := time.Now()
		_, _, err := a.ReadFrom(make([]byte, 16))
		assert.Error(t, err)
		assert.True(t, IsTimeout(err))
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("negative timeout", func(t *testing.T) {
		assert.Error(t, a.SetTimeout(-time.Second))
	})

	t.Run("nil destination", func(t *testing.T) {
		assert.Error(t, a.WriteTo([]byte("x"), nil))
	})
}

func TestNewGenericListenerPortInUse(t *testing.T) {
	logger := zap.NewNop()

	a, err := NewGenericListener(logger, net.IPv4(127, 0, 0, 1), 0)
	require.NoError(t, err)
	defer a.Close()

	addr, err := a.LocalAddr()
	require.NoError(t, err)

	_, err = NewGenericListener(logger, net.IPv4(127, 0, 0, 1), int(addr.Port))
	assert.Error(t, err)
}

func TestAddr(t *testing.T) {
	a := NewAddr(net.IPv4(10, 0, 0, 1), 9001)
	b := a.Copy()

	assert.True(t, a.Equals(b))
	assert.Equal(t, "10.0.0.1:9001", a.String())
	assert.Equal(t, 9001, a.UDPAddr().Port)

	b.Port = 9002
	assert.False(t, a.Equals(b))

	var nilAddr *Addr
	assert.Nil(t, nilAddr.Copy())
	assert.True(t, nilAddr.Equals(nil))
	assert.False(t, a.Equals(nil))
	assert.Nil(t, FromUDPAddr(nil))

	assert.True(t, ValidPort(0))
	assert.True(t, ValidPort(MaxPort))
	assert.False(t, ValidPort(-1))
	assert.False(t, ValidPort(MaxPort+1))
}

func TestResolveIP(t *testing.T) {
	ip, err := ResolveIP("127.0.0.1")
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.IPv4(127, 0, 0, 1)))

	_, err = ResolveIP("no-such-host.invalid")
	assert.Error(t, err)
}
