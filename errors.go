package mdns

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can tell session-fatal errors
// apart from ones that only affect a single call.
type ErrorKind uint8

// Error kinds reported by this package.
const (
	// KindIO is a socket bind, join, send or receive failure. On the receive
	// path it ends the discovery session.
	KindIO ErrorKind = iota + 1
	// KindDecode is a malformed DNS message. Listeners log and skip these.
	KindDecode
	// KindTimeout is produced when an operation is wrapped with Timeout or a
	// context deadline expires.
	KindTimeout
	// KindConfig covers invalid settings and unsupported operations such as
	// sending to an IPv6 destination over an all-interfaces socket.
	KindConfig
	// KindResourceExhausted is a received payload that does not fit the
	// caller's buffer. It only affects the read that produced it.
	KindResourceExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	case KindConfig:
		return "config"
	case KindResourceExhausted:
		return "resource exhausted"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Predefined errors.
var (
	ErrUnsupported       = errors.New("mdns: operation not supported")
	ErrBufferTooSmall    = errors.New("mdns: receive buffer smaller than received payload")
	ErrTimeout           = errors.New("mdns: operation timed out")
	ErrSessionConsumed   = errors.New("mdns: discovery session already listened on")
	ErrListenerExhausted = errors.New("mdns: listener exhausted, create a new session")
	ErrNoInterface       = errors.New("mdns: no usable IPv4 multicast interface")
	ErrInvalidInterval   = errors.New("mdns: query interval must be positive")
)

// Error describes a failed operation together with its kind.
type Error struct {
	Op   string    // operation, e.g. "send", "receive", "join"
	Kind ErrorKind // failure class
	Err  error     // underlying error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mdns: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("mdns: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error ends a discovery session when it is
// returned from the receive path.
func (e *Error) Fatal() bool {
	return e.Kind == KindIO
}

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or zero if
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
