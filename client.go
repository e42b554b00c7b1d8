// Package mdns discovers services announced over multicast DNS (RFC 6762)
// following the DNS-Based Service Discovery conventions (RFC 6763).
//
// A Discovery sends a PTR query for one service name, repeats it at a fixed
// interval and streams back every response that answers for that name:
//
//	d, err := mdns.All("_googlecast._tcp.local", 15*time.Second)
//	if err != nil {
//		return err
//	}
//	for resp, err := range d.Listen(ctx) {
//		if err != nil {
//			continue
//		}
//		fmt.Println(resp.SocketAddress())
//	}
//
// The package only browses; it never answers queries or caches records.
package mdns

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultQueryInterval is the period between queries of a Resolver.
const DefaultQueryInterval = 10 * time.Second

// ResponseHandler is called for every response a browse yields.
type ResponseHandler func(*Response)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// SelectInterface restricts browsing to the interface owning addr. By
// default all IPv4 multicast interfaces are used.
func SelectInterface(addr net.IP) ResolverOption {
	return func(r *Resolver) {
		r.ifaceAddr = addr
	}
}

// QueryInterval sets the period between queries.
func QueryInterval(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.interval = d
	}
}

// SessionOptions passes options to every session the resolver starts.
func SessionOptions(opts ...Option) ResolverOption {
	return func(r *Resolver) {
		r.opts = append(r.opts, opts...)
	}
}

// Resolver runs callback-style browses on top of Discovery sessions.
type Resolver struct {
	ifaceAddr net.IP
	interval  time.Duration
	opts      []Option

	open func(name string) (*Discovery, error)
}

// NewResolver creates a resolver. Sockets are only opened by Browse.
func NewResolver(options ...ResolverOption) *Resolver {
	r := &Resolver{interval: DefaultQueryInterval}
	for _, o := range options {
		if o != nil {
			o(r)
		}
	}
	r.open = r.session
	return r
}

// Browse looks for instances of service in domain ("local" when empty) and
// calls handler for each matching response until ctx is done or the socket
// fails. It returns once the session is set up; handler runs on a separate
// goroutine.
func (r *Resolver) Browse(ctx context.Context, service, domain string, handler ResponseHandler) error {
	d, err := r.open(ServiceName(service, domain))
	if err != nil {
		return err
	}

	go func() {
		for resp, err := range d.Listen(ctx) {
			if err != nil {
				continue
			}
			if handler != nil {
				handler(resp)
			}
		}
		d.logger.Debug("browse finished", zap.NamedError("cause", context.Cause(ctx)))
	}()
	return nil
}

func (r *Resolver) session(name string) (*Discovery, error) {
	if r.ifaceAddr != nil {
		return Interface(name, r.interval, r.ifaceAddr, r.opts...)
	}
	return All(name, r.interval, r.opts...)
}
