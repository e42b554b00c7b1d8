package mdns

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
)

// Multicast addressing constants used by mDNS protocol.
var (
	// mdnsGroupIPv4 is the IPv4 multicast group address for mDNS as defined
	// by RFC 6762 (224.0.0.251).
	mdnsGroupIPv4 = net.IPv4(224, 0, 0, 251)

	// mdnsWildcardAddrIPv4 is the address mDNS sockets bind to: any local
	// address, port 5353.
	mdnsWildcardAddrIPv4 = &net.UDPAddr{
		IP:   net.IPv4zero,
		Port: 5353,
	}

	// ipv4Addr is the destination address for sending IPv4 mDNS queries.
	ipv4Addr = &net.UDPAddr{
		IP:   mdnsGroupIPv4,
		Port: 5353,
	}
)

// maxDatagramSize bounds the scratch receive buffer of both socket kinds.
const maxDatagramSize = 65536

// listenUDP4 binds a UDP socket on the mDNS port with address reuse enabled,
// so other responders and browsers on the host can share the port.
func listenUDP4() (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", mdnsWildcardAddrIPv4.String())
	if err != nil {
		return nil, newError("bind", KindIO, err)
	}
	return conn.(*net.UDPConn), nil
}

// interfaceConn is a socket joined to the mDNS group on a single interface.
type interfaceConn struct {
	pc *ipv4.PacketConn
	rx *scratch
}

// joinInterface opens a socket joined to the mDNS group on the interface
// that owns addr. An unspecified addr lets the system pick the interface.
func joinInterface(addr net.IP) (*interfaceConn, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return nil, newError("join", KindConfig, fmt.Errorf("%w: %v is not an IPv4 address", ErrUnsupported, addr))
	}

	var iface *net.Interface
	if !ip4.IsUnspecified() {
		var err error
		if iface, err = interfaceByAddr(ip4); err != nil {
			return nil, newError("join", KindConfig, err)
		}
	}

	udpConn, err := listenUDP4()
	if err != nil {
		return nil, err
	}

	pc := ipv4.NewPacketConn(udpConn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: mdnsGroupIPv4}); err != nil {
		pc.Close()
		return nil, newError("join", KindIO, err)
	}
	if iface != nil {
		if err := pc.SetMulticastInterface(iface); err != nil {
			pc.Close()
			return nil, newError("join", KindIO, err)
		}
	}
	if err := pc.SetMulticastLoopback(false); err != nil {
		pc.Close()
		return nil, newError("join", KindIO, err)
	}
	_ = pc.SetMulticastTTL(255)

	return &interfaceConn{pc: pc, rx: newScratch()}, nil
}

func (c *interfaceConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	return c.pc.WriteTo(b, nil, dst)
}

// ReadFrom receives a datagram. A datagram that does not fit b is dropped
// with a KindResourceExhausted error; the socket stays usable.
func (c *interfaceConn) ReadFrom(b []byte) (int, net.Addr, error) {
	return c.rx.readFrom(b, c.read)
}

func (c *interfaceConn) read(b []byte) (int, net.Addr, error) {
	n, _, src, err := c.pc.ReadFrom(b)
	return n, src, err
}

func (c *interfaceConn) Close() error {
	return c.pc.Close()
}

// multiConn is a socket joined to the mDNS group on every IPv4 interface.
// Writes go out once per interface and reads come from any of them.
type multiConn struct {
	pc     *ipv4.PacketConn
	ifaces []net.Interface

	writeMu sync.Mutex
	rx      *scratch
}

// joinUdp4Multicast creates a UDP IPv4 socket and joins the mDNS multicast
// group on the given interfaces, or on every IPv4 multicast interface when
// none are given.
//
// It fails only if no interface could be joined; the returned connection
// remembers the interfaces that were.
func joinUdp4Multicast(interfaces []net.Interface) (*multiConn, error) {
	if len(interfaces) == 0 {
		interfaces = listIPv4Interfaces()
	}
	if len(interfaces) == 0 {
		return nil, newError("join", KindConfig, ErrNoInterface)
	}

	udpConn, err := listenUDP4()
	if err != nil {
		return nil, err
	}

	// Configure packet connection for multicast operation
	pkConn := ipv4.NewPacketConn(udpConn)
	_ = pkConn.SetControlMessage(ipv4.FlagInterface, true)
	_ = pkConn.SetMulticastTTL(255)
	if err := pkConn.SetMulticastLoopback(false); err != nil {
		pkConn.Close()
		return nil, newError("join", KindIO, err)
	}

	var joined []net.Interface
	var joinErr error
	for _, iface := range interfaces {
		if err := pkConn.JoinGroup(&iface, &net.UDPAddr{IP: mdnsGroupIPv4}); err != nil {
			joinErr = multierr.Append(joinErr, fmt.Errorf("%s: %w", iface.Name, err))
			continue
		}
		joined = append(joined, iface)
	}

	// Fail if unable to join any interface
	if len(joined) == 0 {
		pkConn.Close()
		return nil, newError("join", KindIO, joinErr)
	}

	return &multiConn{
		pc:     pkConn,
		ifaces: joined,
		rx:     newScratch(),
	}, nil
}

// WriteTo sends b on every joined interface. It succeeds if at least one
// interface accepted the datagram. Only IPv4 destinations are supported.
func (c *multiConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	udpAddr, ok := dst.(*net.UDPAddr)
	if !ok || udpAddr.IP.To4() == nil {
		return 0, newError("send", KindConfig, fmt.Errorf("%w: sending to %v on all-interfaces sockets", ErrUnsupported, dst))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var sent int
	var sendErr error
	var wcm ipv4.ControlMessage
	for ifi := range c.ifaces {
		// Platform-specific interface binding
		switch runtime.GOOS {
		case "darwin", "ios", "linux":
			wcm.IfIndex = c.ifaces[ifi].Index
		default:
			if err := c.pc.SetMulticastInterface(&c.ifaces[ifi]); err != nil {
				sendErr = multierr.Append(sendErr, fmt.Errorf("%s: %w", c.ifaces[ifi].Name, err))
				continue
			}
		}
		if _, err := c.pc.WriteTo(b, &wcm, udpAddr); err != nil {
			sendErr = multierr.Append(sendErr, fmt.Errorf("%s: %w", c.ifaces[ifi].Name, err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return 0, newError("send", KindIO, sendErr)
	}
	return len(b), nil
}

// ReadFrom receives a datagram from any joined interface. A datagram that
// does not fit b is dropped with a KindResourceExhausted error; the socket
// stays usable.
func (c *multiConn) ReadFrom(b []byte) (int, net.Addr, error) {
	return c.rx.readFrom(b, c.read)
}

func (c *multiConn) read(b []byte) (int, net.Addr, error) {
	n, _, src, err := c.pc.ReadFrom(b)
	return n, src, err
}

func (c *multiConn) Close() error {
	return c.pc.Close()
}

// scratch is a receive buffer sized for any UDP datagram. Reads land in it
// first, so payloads larger than the caller's buffer are reported instead of
// being truncated by the kernel.
type scratch struct {
	mu  sync.Mutex
	buf []byte
}

func newScratch() *scratch {
	return &scratch{buf: make([]byte, maxDatagramSize)}
}

func (s *scratch) readFrom(b []byte, read func([]byte) (int, net.Addr, error)) (int, net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, src, err := read(s.buf)
	if err != nil {
		return 0, src, err
	}
	n, err = copyPayload(b, s.buf[:n])
	return n, src, err
}

// copyPayload copies a received datagram into the caller's buffer, refusing
// payloads that would not fit.
func copyPayload(dst, payload []byte) (int, error) {
	if len(payload) > len(dst) {
		return 0, newError("receive", KindResourceExhausted,
			fmt.Errorf("%w: %d > %d bytes", ErrBufferTooSmall, len(payload), len(dst)))
	}
	return copy(dst, payload), nil
}

// interfaceByAddr returns the interface that has addr assigned.
func interfaceByAddr(addr net.IP) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(addr) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no interface has address %v", ErrNoInterface, addr)
}

// listIPv4Interfaces returns the multicast interfaces that carry at least
// one IPv4 address.
func listIPv4Interfaces() []net.Interface {
	var interfaces []net.Interface
	for _, ifi := range listMulticastInterfaces() {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				interfaces = append(interfaces, ifi)
				break
			}
		}
	}
	return interfaces
}

// listMulticastInterfaces scans all system network interfaces and returns
// those that are up and support multicast communication.
//
// Returns nil if interface enumeration fails.
func listMulticastInterfaces() []net.Interface {
	var interfaces []net.Interface
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	// Filter interfaces: must be UP and support MULTICAST
	for _, ifi := range ifaces {
		if (ifi.Flags & net.FlagUp) == 0 {
			continue
		}
		if (ifi.Flags & net.FlagMulticast) > 0 {
			interfaces = append(interfaces, ifi)
		}
	}

	return interfaces
}
