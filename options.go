package mdns

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultBufferSize is the receive buffer size of a listener. Larger
// datagrams fail the read that received them.
const DefaultBufferSize = 4096

// options holds configuration shared by Discovery, Sender and Listener.
type options struct {
	logger     *zap.Logger
	clock      clock.Clock
	bufferSize int
}

// Option configures a discovery session.
type Option func(*options)

// WithLogger sets the logger that receives query failures, malformed
// packets and listener errors. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the clock driving periodic queries. Tests pass
// clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithBufferSize sets the size of the receive buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

func newOptions(opts []Option) (options, error) {
	conf := options{
		clock:      clock.New(),
		bufferSize: DefaultBufferSize,
	}
	for _, o := range opts {
		if o != nil {
			o(&conf)
		}
	}
	if conf.logger == nil {
		conf.logger = zap.L()
	}
	conf.logger = conf.logger.Named("mdns")
	if conf.clock == nil {
		conf.clock = clock.New()
	}
	if conf.bufferSize <= 0 {
		return conf, newError("configure", KindConfig, fmt.Errorf("invalid buffer size %d", conf.bufferSize))
	}
	return conf, nil
}
