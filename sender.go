package mdns

import (
	"errors"
	"strings"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// Sender transmits PTR queries for one service name to the mDNS group.
// Concurrent SendRequest calls are safe.
type Sender struct {
	serviceName string
	conn        PacketConn
	maxSize     int
	logger      *zap.Logger
}

// NewSender returns a sender for serviceName writing to conn.
func NewSender(serviceName string, conn PacketConn, opts ...Option) (*Sender, error) {
	if strings.TrimSuffix(serviceName, ".") == "" {
		return nil, newError("configure", KindConfig, errors.New("empty service name"))
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return newSender(strings.TrimSuffix(serviceName, "."), conn, o), nil
}

func newSender(serviceName string, conn PacketConn, o options) *Sender {
	return &Sender{
		serviceName: serviceName,
		conn:        conn,
		maxSize:     o.bufferSize,
		logger:      o.logger,
	}
}

// query builds the message sent by SendRequest: id 0, no recursion, one
// PTR/IN question with the unicast-response bit clear.
func (s *Sender) query() *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(s.serviceName), dns.TypePTR)
	m.Id = 0
	m.RecursionDesired = false
	return m
}

// SendRequest multicasts one query. A message that would not fit the
// configured size is truncated rather than rejected.
func (s *Sender) SendRequest() error {
	m := s.query()
	m.Truncate(s.maxSize)

	buf, err := m.Pack()
	if err != nil {
		return newError("send", KindConfig, err)
	}

	if _, err := s.conn.WriteTo(buf, ipv4Addr); err != nil {
		if KindOf(err) != 0 {
			return err
		}
		return newError("send", KindIO, err)
	}
	s.logger.Debug("sent query", zap.String("service", s.serviceName), zap.Int("bytes", len(buf)))
	return nil
}

// Close releases the sender's hold on the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
