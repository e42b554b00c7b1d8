package mdns

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Discovery is a multicast DNS lookup of a single service name. Configure
// it, then call Listen once to obtain the stream of responses.
type Discovery struct {
	serviceName string
	interval    time.Duration
	ignoreEmpty bool

	sender   *Sender
	listener *Listener
	logger   *zap.Logger
	opts     options

	consumed atomic.Bool
}

// Interface starts a lookup of service on the local interface that owns
// ifaceAddr, querying again every interval. An unspecified address
// (0.0.0.0) uses the system's default multicast interface.
func Interface(service string, every time.Duration, ifaceAddr net.IP, opts ...Option) (*Discovery, error) {
	if err := validate(service, every); err != nil {
		return nil, err
	}
	conn, err := joinInterface(ifaceAddr)
	if err != nil {
		return nil, err
	}
	d, err := New(service, every, conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// All starts a lookup of service on every local IPv4 multicast interface,
// querying again every interval.
func All(service string, every time.Duration, opts ...Option) (*Discovery, error) {
	if err := validate(service, every); err != nil {
		return nil, err
	}
	conn, err := joinUdp4Multicast(nil)
	if err != nil {
		return nil, err
	}
	d, err := New(service, every, conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// New starts a lookup over an existing socket. The session takes ownership
// of conn and closes it when the stream returned by Listen ends.
func New(service string, every time.Duration, conn PacketConn, opts ...Option) (*Discovery, error) {
	if err := validate(service, every); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, newError("configure", KindConfig, errors.New("nil connection"))
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(service, ".")
	shared := share(conn)
	return &Discovery{
		serviceName: name,
		interval:    every,
		ignoreEmpty: true,
		sender:      newSender(name, shared, o),
		listener:    newListener(shared.clone(), o),
		logger:      o.logger.With(zap.String("service", name)),
		opts:        o,
	}, nil
}

func validate(service string, every time.Duration) error {
	if strings.TrimSuffix(service, ".") == "" {
		return newError("configure", KindConfig, errors.New("empty service name"))
	}
	if every <= 0 {
		return newError("configure", KindConfig, ErrInvalidInterval)
	}
	return nil
}

// IgnoreEmpty sets whether responses without any record are dropped.
// Defaults to true. Call it before Listen.
//
// A response is only forwarded when one of its answers is owned by the
// queried service name, and an empty response never has one. Turning this
// off therefore does not make empty responses visible; the switch is kept so
// callers can state intent explicitly.
func (d *Discovery) IgnoreEmpty(ignore bool) *Discovery {
	d.ignoreEmpty = ignore
	return d
}

// Close releases the socket of a session that will not be listened on.
// Sessions that were listened on release it when their stream ends.
func (d *Discovery) Close() error {
	if !d.consumed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(d.sender.Close(), d.listener.Close())
}

// ServiceName returns the name being queried, without the trailing dot.
func (d *Discovery) ServiceName() string {
	return d.serviceName
}

type eventKind uint8

const (
	eventTick eventKind = iota
	eventResponse
)

// event is one item of the merged tick and response stream.
type event struct {
	kind eventKind
	resp *Response
	err  error
}

// Listen sends a query right away, then every interval, and yields the
// responses that answer for the service name. Listener errors are always
// yielded. The stream is unbounded: it ends when the consumer stops
// iterating, when ctx is done, or after a fatal receive error. If ctx hit its
// deadline, a KindTimeout error is yielded first.
//
// Ending the stream closes the socket. Listen may be ranged over only once.
func (d *Discovery) Listen(ctx context.Context) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		if !d.consumed.CompareAndSwap(false, true) {
			yield(nil, newError("listen", KindConfig, ErrSessionConsumed))
			return
		}

		sessionCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			d.sender.Close()
			d.listener.Close()
			wg.Wait()
		}()

		responses := make(chan event)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(responses)
			for resp, err := range d.listener.Listen(sessionCtx) {
				select {
				case responses <- event{kind: eventResponse, resp: resp, err: err}:
				case <-sessionCtx.Done():
					return
				}
			}
		}()

		ticks := newInterval(d.opts.clock, d.interval)
		defer ticks.Stop()

		d.spawnQuery(sessionCtx, &wg, "initial")

		for {
			var ev event
			select {
			case <-sessionCtx.Done():
				d.yieldTimeout(ctx, yield)
				return
			case e, ok := <-responses:
				if !ok {
					d.yieldTimeout(ctx, yield)
					return
				}
				ev = e
			case <-ticks.C():
				ev = event{kind: eventTick}
			}

			if out, forward := d.handle(sessionCtx, &wg, ev); forward && !yield(out.resp, out.err) {
				return
			}
		}
	}
}

// handle fires a query for ticks and applies the output filter to
// responses.
func (d *Discovery) handle(ctx context.Context, wg *sync.WaitGroup, ev event) (event, bool) {
	if ev.kind == eventTick {
		d.spawnQuery(ctx, wg, "interval")
		return ev, false
	}
	if ev.err != nil {
		d.logger.Warn("listener error", zap.Error(ev.err))
		return ev, true
	}
	return ev, d.accept(ev.resp)
}

// accept is the output filter for decoded responses.
func (d *Discovery) accept(resp *Response) bool {
	return (!resp.IsEmpty() || !d.ignoreEmpty) && resp.hasAnswerFor(d.serviceName)
}

// spawnQuery sends one query in the background. Failures are logged; they
// never reach the response stream.
func (d *Discovery) spawnQuery(ctx context.Context, wg *sync.WaitGroup, trigger string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.sender.SendRequest(); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("failed to send query", zap.String("trigger", trigger), zap.Error(err))
		}
	}()
}

func (d *Discovery) yieldTimeout(ctx context.Context, yield func(*Response, error) bool) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		yield(nil, newError("listen", KindTimeout, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())))
	}
}
