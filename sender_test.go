package mdns

import (
	"errors"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSender_SendRequest(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSender(testService+".", conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	require.NoError(t, s.SendRequest())

	m := new(dns.Msg)
	require.NoError(t, m.Unpack(waitSent(t, conn)))
	assert.Equal(t, uint16(0), m.Id)
	assert.False(t, m.RecursionDesired)
	assert.False(t, m.Response)
	require.Len(t, m.Question, 1)
	assert.Equal(t, dns.Question{Name: testService + ".", Qtype: dns.TypePTR, Qclass: dns.ClassINET}, m.Question[0])
	assert.Empty(t, m.Answer)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.dsts, 1)
	assert.Equal(t, "224.0.0.251:5353", conn.dsts[0].String())
}

func TestSender_SendFailure(t *testing.T) {
	cause := errors.New("network unreachable")
	conn := newFakeConn()
	conn.writeErr = cause

	s, err := NewSender(testService, conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	err = s.SendRequest()
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestSender_TypedErrorPassesThrough(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = newError("send", KindConfig, ErrUnsupported)

	s, err := NewSender(testService, conn, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	err = s.SendRequest()
	assert.Equal(t, KindConfig, KindOf(err))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewSender_Invalid(t *testing.T) {
	_, err := NewSender(".", newFakeConn())
	assert.Equal(t, KindConfig, KindOf(err))

	_, err = NewSender(testService, newFakeConn(), WithBufferSize(-1))
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestSender_Close(t *testing.T) {
	conn := newFakeConn()
	s, err := NewSender(testService, conn)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, conn.isClosed())
}
