package mdns

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// qClassCacheFlush is the top bit of the class field used to indicate
// that a record should flush conflicting cache entries (RFC 6762 section 10.2).
const qClassCacheFlush uint16 = 1 << 15

// Class is a DNS class with the mDNS cache-flush bit removed.
type Class uint16

// DNS classes (RFC 1035 section 3.2.4).
const (
	ClassIN Class = 1
	ClassCS Class = 2
	ClassCH Class = 3
	ClassHS Class = 4
)

func (c Class) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	default:
		return fmt.Sprintf("CLASS%d", uint16(c))
	}
}

// Response is one decoded DNS message. Record order within each section is
// wire order.
type Response struct {
	Answers     []Record
	Nameservers []Record
	Additional  []Record
}

// Record is a single resource record.
type Record struct {
	Name       string // owner name, case preserved, no trailing dot
	Class      Class
	CacheFlush bool
	TTL        uint32
	Kind       RecordKind
}

// RecordKind is the typed payload of a record. It is one of A, AAAA, CNAME,
// MX, NS, SRV, TXT, PTR or Unimplemented.
type RecordKind interface {
	recordKind()
	String() string
}

// A is an IPv4 host address.
type A struct{ Addr netip.Addr }

// AAAA is an IPv6 host address.
type AAAA struct{ Addr netip.Addr }

// CNAME is a canonical name alias.
type CNAME struct{ Target string }

// MX is a mail exchange.
type MX struct {
	Preference uint16
	Exchange   string
}

// NS is an authoritative name server.
type NS struct{ Host string }

// SRV locates a service instance (RFC 2782).
type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// TXT holds DNS-SD key/value attributes.
type TXT struct{ Attributes TxtAttributes }

// PTR points at another name, for DNS-SD the service instance.
type PTR struct{ Target string }

// Unimplemented carries the raw RDATA of a record type without a typed
// representation. SOA records are reported this way on purpose.
type Unimplemented struct {
	Type uint16
	Data []byte
}

func (A) recordKind()             {}
func (AAAA) recordKind()          {}
func (CNAME) recordKind()         {}
func (MX) recordKind()            {}
func (NS) recordKind()            {}
func (SRV) recordKind()           {}
func (TXT) recordKind()           {}
func (PTR) recordKind()           {}
func (Unimplemented) recordKind() {}

func (k A) String() string     { return "A " + k.Addr.String() }
func (k AAAA) String() string  { return "AAAA " + k.Addr.String() }
func (k CNAME) String() string { return "CNAME " + k.Target }
func (k MX) String() string    { return fmt.Sprintf("MX %d %s", k.Preference, k.Exchange) }
func (k NS) String() string    { return "NS " + k.Host }
func (k PTR) String() string   { return "PTR " + k.Target }

func (k SRV) String() string {
	return fmt.Sprintf("SRV %d %d %d %s", k.Priority, k.Weight, k.Port, k.Target)
}

func (k TXT) String() string {
	parts := make([]string, 0, k.Attributes.Len())
	for _, e := range k.Attributes.Entries() {
		if e.Value.Kind == TxtNone {
			parts = append(parts, e.Key)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", e.Key, e.Value.Data))
	}
	return "TXT " + strings.Join(parts, " ")
}

func (k Unimplemented) String() string {
	return fmt.Sprintf("%s \\# %d %x", dns.Type(k.Type), len(k.Data), k.Data)
}

func (r Record) String() string {
	return fmt.Sprintf("%s %d %s %s", r.Name, r.TTL, r.Class, r.Kind)
}

// Decode unpacks a DNS message and maps it onto a Response.
func Decode(b []byte) (*Response, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(b); err != nil {
		return nil, newError("decode", KindDecode, err)
	}
	return FromMsg(msg), nil
}

// FromMsg maps a decoded DNS message onto a Response. A nil message yields
// an empty Response.
func FromMsg(msg *dns.Msg) *Response {
	if msg == nil {
		return &Response{}
	}
	return &Response{
		Answers:     fromRRs(msg.Answer),
		Nameservers: fromRRs(msg.Ns),
		Additional:  fromRRs(msg.Extra),
	}
}

func fromRRs(rrs []dns.RR) []Record {
	if len(rrs) == 0 {
		return nil
	}
	records := make([]Record, 0, len(rrs))
	for _, rr := range rrs {
		records = append(records, fromRR(rr))
	}
	return records
}

func fromRR(rr dns.RR) Record {
	hdr := rr.Header()
	return Record{
		Name:       decodeName(hdr.Name),
		Class:      Class(hdr.Class &^ qClassCacheFlush),
		CacheFlush: hdr.Class&qClassCacheFlush != 0,
		TTL:        hdr.Ttl,
		Kind:       kindOf(rr),
	}
}

func kindOf(rr dns.RR) RecordKind {
	switch rr := rr.(type) {
	case *dns.A:
		if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
			return A{Addr: addr}
		}
	case *dns.AAAA:
		if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
			return AAAA{Addr: addr}
		}
	case *dns.CNAME:
		return CNAME{Target: decodeName(rr.Target)}
	case *dns.MX:
		return MX{Preference: rr.Preference, Exchange: decodeName(rr.Mx)}
	case *dns.NS:
		return NS{Host: decodeName(rr.Ns)}
	case *dns.SRV:
		return SRV{
			Priority: rr.Priority,
			Weight:   rr.Weight,
			Port:     rr.Port,
			Target:   decodeName(rr.Target),
		}
	case *dns.TXT:
		strs := make([][]byte, 0, len(rr.Txt))
		for _, s := range rr.Txt {
			strs = append(strs, []byte(dnsUnescape(s)))
		}
		return TXT{Attributes: parseTxt(strs)}
	case *dns.PTR:
		return PTR{Target: decodeName(rr.Ptr)}
	}
	return Unimplemented{Type: rr.Header().Rrtype, Data: rawRdata(rr)}
}

// rawRdata recovers the wire RDATA of any record through its RFC 3597
// generic representation.
func rawRdata(rr dns.RR) []byte {
	generic, ok := rr.(*dns.RFC3597)
	if !ok {
		generic = new(dns.RFC3597)
		if err := generic.ToRFC3597(rr); err != nil {
			return nil
		}
	}
	data, err := hex.DecodeString(generic.Rdata)
	if err != nil {
		return nil
	}
	return data
}

// Records returns answers, nameservers and additional records in that order.
func (r *Response) Records() []Record {
	records := make([]Record, 0, len(r.Answers)+len(r.Nameservers)+len(r.Additional))
	records = append(records, r.Answers...)
	records = append(records, r.Nameservers...)
	return append(records, r.Additional...)
}

// IsEmpty reports whether all three sections are empty.
func (r *Response) IsEmpty() bool {
	return len(r.Answers) == 0 && len(r.Nameservers) == 0 && len(r.Additional) == 0
}

// IPAddr returns the first A or AAAA address in record order.
func (r *Response) IPAddr() (netip.Addr, bool) {
	for _, rec := range r.Records() {
		switch k := rec.Kind.(type) {
		case A:
			return k.Addr, true
		case AAAA:
			return k.Addr, true
		}
	}
	return netip.Addr{}, false
}

// Hostname returns the target of the first PTR record.
func (r *Response) Hostname() (string, bool) {
	for _, rec := range r.Records() {
		if k, ok := rec.Kind.(PTR); ok {
			return k.Target, true
		}
	}
	return "", false
}

// Port returns the port of the first SRV record.
func (r *Response) Port() (uint16, bool) {
	for _, rec := range r.Records() {
		if k, ok := rec.Kind.(SRV); ok {
			return k.Port, true
		}
	}
	return 0, false
}

// SocketAddress combines IPAddr and Port. It fails unless both are present.
func (r *Response) SocketAddress() (netip.AddrPort, bool) {
	addr, ok := r.IPAddr()
	if !ok {
		return netip.AddrPort{}, false
	}
	port, ok := r.Port()
	if !ok {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr, port), true
}

// TxtRecords returns the attributes of every TXT record, flattened in
// record order.
func (r *Response) TxtRecords() []TxtEntry {
	var entries []TxtEntry
	for _, rec := range r.Records() {
		if k, ok := rec.Kind.(TXT); ok {
			entries = append(entries, k.Attributes.Entries()...)
		}
	}
	return entries
}

// hasAnswerFor reports whether some answer is owned by exactly name.
func (r *Response) hasAnswerFor(name string) bool {
	for _, rec := range r.Answers {
		if rec.Name == name {
			return true
		}
	}
	return false
}

func (r *Response) String() string {
	var b strings.Builder
	section := func(title string, records []Record) {
		if len(records) == 0 {
			return
		}
		fmt.Fprintf(&b, ";; %s\n", title)
		for _, rec := range records {
			b.WriteString(rec.String())
			b.WriteByte('\n')
		}
	}
	section("ANSWER", r.Answers)
	section("AUTHORITY", r.Nameservers)
	section("ADDITIONAL", r.Additional)
	return b.String()
}
