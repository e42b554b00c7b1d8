package mdns

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestListener_SkipsMalformedPackets(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	conn := newFakeConn()
	l, err := NewListener(conn, WithLogger(zap.New(core)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.push(packResponse(t, "host.local. 120 IN A 10.0.0.1"))
	conn.push([]byte{0xde, 0xad, 0xbe, 0xef})
	conn.push(nil)
	conn.push(packResponse(t, "host.local. 120 IN A 10.0.0.2"))

	items := drain(ctx, l.Listen(ctx))

	first, ok := nextItem(t, items)
	require.True(t, ok)
	require.NoError(t, first.err)
	addr, _ := first.resp.IPAddr()
	assert.Equal(t, "10.0.0.1", addr.String())

	second, ok := nextItem(t, items)
	require.True(t, ok)
	require.NoError(t, second.err)
	addr, _ = second.resp.IPAddr()
	assert.Equal(t, "10.0.0.2", addr.String())

	dropped := logs.FilterMessage("dropping malformed packet").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "mdns", dropped[0].LoggerName)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, dropped[0].ContextMap()["payload"])

	cancel()
	conn.Close()
}

func TestListener_ReceiveErrorEndsStream(t *testing.T) {
	cause := errors.New("connection reset")
	conn := newFakeConn()
	l, err := NewListener(conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.fail(cause)
	conn.push(packResponse(t, "host.local. 120 IN A 10.0.0.1"))

	items := drain(ctx, l.Listen(ctx))
	it, ok := nextItem(t, items)
	require.True(t, ok)
	assert.Nil(t, it.resp)
	assert.Equal(t, KindIO, KindOf(it.err))
	assert.ErrorIs(t, it.err, cause)

	_, ok = nextItem(t, items)
	assert.False(t, ok, "stream must end after a fatal receive error")

	for resp, err := range l.Listen(ctx) {
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, ErrListenerExhausted)
	}
}

func TestListener_OversizedDatagramIsNotFatal(t *testing.T) {
	conn := newFakeConn()
	l, err := NewListener(conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.fail(newError("receive", KindResourceExhausted, ErrBufferTooSmall))
	conn.push(packResponse(t, "host.local. 120 IN A 10.0.0.1"))

	items := drain(ctx, l.Listen(ctx))
	it, ok := nextItem(t, items)
	require.True(t, ok)
	assert.Equal(t, KindResourceExhausted, KindOf(it.err))

	it, ok = nextItem(t, items)
	require.True(t, ok)
	require.NoError(t, it.err)
	assert.False(t, it.resp.IsEmpty())

	cancel()
	conn.Close()
}

func TestListener_EndsSilentlyOnCancel(t *testing.T) {
	conn := newFakeConn()
	l, err := NewListener(conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	items := drain(context.Background(), l.Listen(ctx))

	cancel()
	require.NoError(t, l.Close())

	_, ok := nextItem(t, items)
	assert.False(t, ok)
}

func TestListener_SingleLoop(t *testing.T) {
	conn := newFakeConn()
	l, err := NewListener(conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.push(packResponse(t, "host.local. 120 IN A 10.0.0.1"))
	items := drain(ctx, l.Listen(ctx))
	_, ok := nextItem(t, items)
	require.True(t, ok)

	for resp, err := range l.Listen(ctx) {
		assert.Nil(t, resp)
		assert.Equal(t, KindConfig, KindOf(err))
	}

	cancel()
	conn.Close()
}
