package mdns

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// Listener runs the receive loop of a session. It owns its receive buffer,
// so it supports a single loop at a time.
type Listener struct {
	conn      PacketConn
	buf       []byte
	logger    *zap.Logger
	running   atomic.Bool
	exhausted atomic.Bool
}

// NewListener returns a listener reading from conn.
func NewListener(conn PacketConn, opts ...Option) (*Listener, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newListener(conn, o), nil
}

func newListener(conn PacketConn, o options) *Listener {
	return &Listener{
		conn:   conn,
		buf:    make([]byte, o.bufferSize),
		logger: o.logger,
	}
}

// Listen returns the sequence of decoded responses. Malformed datagrams are
// logged and skipped. Receive errors that only affect one read are yielded
// and the loop goes on; any other receive error is yielded once and ends
// the sequence for good. The loop also ends, without an error, once ctx is
// done and the socket is closed.
func (l *Listener) Listen(ctx context.Context) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if l.exhausted.Load() {
			yield(nil, newError("receive", KindIO, ErrListenerExhausted))
			return
		}
		if !l.running.CompareAndSwap(false, true) {
			yield(nil, newError("receive", KindConfig, errors.New("listener already running")))
			return
		}
		defer l.running.Store(false)

		for {
			n, src, err := l.conn.ReadFrom(l.buf)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if kind := KindOf(err); kind == KindResourceExhausted || kind == KindConfig {
					if !yield(nil, err) {
						return
					}
					continue
				}
				l.exhausted.Store(true)
				if KindOf(err) == 0 {
					err = newError("receive", KindIO, err)
				}
				yield(nil, err)
				return
			}
			if n == 0 {
				continue
			}

			msg := new(dns.Msg)
			if err := msg.Unpack(l.buf[:n]); err != nil {
				l.logger.Warn("dropping malformed packet",
					zap.Error(err),
					zap.Any("from", src),
					zap.Binary("payload", bytes.Clone(l.buf[:n])))
				continue
			}
			if !yield(FromMsg(msg), nil) {
				return
			}
		}
	}
}

// Close releases the listener's hold on the socket. A blocked Listen
// returns once the last holder has closed.
func (l *Listener) Close() error {
	return l.conn.Close()
}
