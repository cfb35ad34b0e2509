package packet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, conn *fakeConn) datagram {
	t.Helper()
	select {
	case d := <-conn.outbound:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("nothing was sent")
		return datagram{}
	}
}

func TestNewWriter(t *testing.T) {
	conn := newFakeConn()
	w, err := NewWriter(zap.NewNop(), conn)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, conn.Timeout())
	assert.Equal(t, DefaultQueueCapacity, w.queue.capacity())

	_, err = NewWriter(zap.NewNop(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriterEnqueueValidation(t *testing.T) {
	w, err := NewWriter(zap.NewNop(), newFakeConn())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, w.Enqueue(ctx, nil), ErrInvalidArgument)
	assert.ErrorIs(t, w.Enqueue(ctx, NewPacket([]byte("x"))), ErrInvalidArgument)

	p := NewPacketTo([]byte("x"), peer(9001))
	p.Port = PortUnset
	assert.ErrorIs(t, w.Enqueue(ctx, p), ErrInvalidArgument)

	assert.Equal(t, 0, w.Pending())
}

func TestWriterSendsInOrder(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, conn.SetTimeout(50*time.Millisecond))

	w, err := NewWriter(zap.NewNop(), conn)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, w.Enqueue(ctx, NewPacketTo([]byte(fmt.Sprint(i)), peer(9001))))
	}
	assert.Equal(t, 20, w.Pending())

	stop := startLoop(t, w.Start)
	defer stop()

	for i := 0; i < 20; i++ {
		d := receive(t, conn)
		assert.Equal(t, fmt.Sprint(i), string(d.payload))
		assert.True(t, d.addr.Equals(peer(9001)))
	}
	assert.Eventually(t, func() bool { return w.Sent() == 20 }, time.Second, 5*time.Millisecond)
}

func TestWriterEnqueueBlocksWhileFull(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, conn.SetTimeout(50*time.Millisecond))

	w, err := NewWriter(zap.NewNop(), conn, WithQueueCapacity(1))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, NewPacketTo([]byte("first"), peer(9001))))

	done := make(chan error, 1)
	go func() {
		done <- w.Enqueue(ctx, NewPacketTo([]byte("second"), peer(9001)))
	}()

	select {
	case <-done:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(100 * time.Millisecond):
	}

	stop := startLoop(t, w.Start)
	defer stop()

	require.NoError(t, <-done)
	assert.Equal(t, "first", string(receive(t, conn).payload))
	assert.Equal(t, "second", string(receive(t, conn).payload))
}

func TestWriterEnqueueInterrupted(t *testing.T) {
	w, err := NewWriter(zap.NewNop(), newFakeConn(), WithQueueCapacity(1))
	require.NoError(t, err)
	require.NoError(t, w.Enqueue(context.Background(), NewPacketTo(nil, peer(9001))))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = w.Enqueue(ctx, NewPacketTo(nil, peer(9001)))
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, w.Pending())
}

func TestWriterSurvivesSendErrors(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, conn.SetTimeout(50*time.Millisecond))
	conn.setWriteErr(errors.New("network is unreachable"))

	w, err := NewWriter(zap.NewNop(), conn)
	require.NoError(t, err)
	stop := startLoop(t, w.Start)
	defer stop()

	ctx := context.Background()
	require.NoError(t, w.Enqueue(ctx, NewPacketTo([]byte("lost"), peer(9001))))
	assert.Eventually(t, func() bool { return w.Failed() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, w.Running())

	conn.setWriteErr(nil)
	require.NoError(t, w.Enqueue(ctx, NewPacketTo([]byte("delivered"), peer(9001))))
	assert.Equal(t, "delivered", string(receive(t, conn).payload))
}

func TestWriterSkipsUnaddressed(t *testing.T) {
	conn := newFakeConn()
	w, err := NewWriter(zap.NewNop(), conn)
	require.NoError(t, err)

	w.send(NewPacket([]byte("nowhere")))
	assert.Equal(t, uint64(1), w.Failed())
	assert.Empty(t, conn.outbound)
}

func TestWriterStopWithinTimeout(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, conn.SetTimeout(100*time.Millisecond))

	w, err := NewWriter(zap.NewNop(), conn)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- w.Start(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	w.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}
	assert.ErrorIs(t, w.Start(context.Background()), ErrStarted)
}
