package mdns

import (
	"context"
	"iter"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

const testService = "_googlecast._tcp.local"

var testPeer = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: 5353}

type datagram struct {
	data []byte
	err  error
}

// fakeConn is an in-memory PacketConn. Datagrams pushed to inbox are
// returned by ReadFrom; writes are recorded on sent.
type fakeConn struct {
	inbox    chan datagram
	sent     chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr error

	mu   sync.Mutex
	dsts []net.Addr
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan datagram, 16),
		sent:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.mu.Lock()
	c.dsts = append(c.dsts, dst)
	c.mu.Unlock()
	select {
	case c.sent <- append([]byte(nil), b...):
	default:
	}
	return len(b), nil
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case d := <-c.inbox:
		if d.err != nil {
			return 0, nil, d.err
		}
		return copy(b, d.data), testPeer, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(data []byte) {
	c.inbox <- datagram{data: data}
}

func (c *fakeConn) fail(err error) {
	c.inbox <- datagram{err: err}
}

// waitSent returns the next datagram written to the connection.
func waitSent(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	select {
	case b := <-c.sent:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a query")
		return nil
	}
}

// assertNoSend fails if anything is written within d.
func assertNoSend(t *testing.T, c *fakeConn, d time.Duration) {
	t.Helper()
	select {
	case <-c.sent:
		t.Fatal("unexpected query")
	case <-time.After(d):
	}
}

type item struct {
	resp *Response
	err  error
}

// drain ranges over seq on its own goroutine until ctx is done.
func drain(ctx context.Context, seq iter.Seq2[*Response, error]) <-chan item {
	ch := make(chan item)
	go func() {
		defer close(ch)
		for resp, err := range seq {
			select {
			case ch <- item{resp: resp, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// nextItem returns the next stream item, or ok=false once the stream ended.
func nextItem(t *testing.T, ch <-chan item) (item, bool) {
	t.Helper()
	select {
	case it, ok := <-ch:
		return it, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stream")
		return item{}, false
	}
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

// packResponse builds a response datagram with the given answer records.
func packResponse(t *testing.T, answers ...string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.Response = true
	m.Authoritative = true
	for _, a := range answers {
		m.Answer = append(m.Answer, mustRR(t, a))
	}
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}
