// Package mdnsjson encodes mdns responses as JSON and back.
//
// Importing it is optional; the discovery engine never serializes
// anything by itself.
package mdnsjson

import (
	"fmt"
	"net/netip"

	jsoniter "github.com/json-iterator/go"

	mdns "github.com/elum-utils/mdnsdiscovery"
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: false,
	SortMapKeys:            true,
}.Froze()

type response struct {
	Answers     []record `json:"answers"`
	Nameservers []record `json:"nameservers"`
	Additional  []record `json:"additional"`
}

type record struct {
	Name       string `json:"name"`
	Class      uint16 `json:"class"`
	CacheFlush bool   `json:"cache_flush,omitempty"`
	TTL        uint32 `json:"ttl"`
	Kind       kind   `json:"kind"`
}

type kind struct {
	Type string `json:"type"`

	Addr       string     `json:"addr,omitempty"`
	Target     string     `json:"target,omitempty"`
	Preference uint16     `json:"preference,omitempty"`
	Priority   uint16     `json:"priority,omitempty"`
	Weight     uint16     `json:"weight,omitempty"`
	Port       uint16     `json:"port,omitempty"`
	Txt        []txtEntry `json:"txt,omitempty"`
	RRType     uint16     `json:"rrtype,omitempty"`
	Data       []byte     `json:"data,omitempty"`
}

type txtEntry struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Value []byte `json:"value,omitempty"`
}

// Marshal encodes a response. TXT values and raw record data are base64
// encoded since they need not be UTF-8.
func Marshal(r *mdns.Response) ([]byte, error) {
	return json.Marshal(response{
		Answers:     fromRecords(r.Answers),
		Nameservers: fromRecords(r.Nameservers),
		Additional:  fromRecords(r.Additional),
	})
}

// Unmarshal decodes a response produced by Marshal.
func Unmarshal(data []byte) (*mdns.Response, error) {
	var v response
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	answers, err := toRecords(v.Answers)
	if err != nil {
		return nil, err
	}
	nameservers, err := toRecords(v.Nameservers)
	if err != nil {
		return nil, err
	}
	additional, err := toRecords(v.Additional)
	if err != nil {
		return nil, err
	}
	return &mdns.Response{Answers: answers, Nameservers: nameservers, Additional: additional}, nil
}

func fromRecords(records []mdns.Record) []record {
	out := make([]record, 0, len(records))
	for _, r := range records {
		out = append(out, record{
			Name:       r.Name,
			Class:      uint16(r.Class),
			CacheFlush: r.CacheFlush,
			TTL:        r.TTL,
			Kind:       fromKind(r.Kind),
		})
	}
	return out
}

func fromKind(k mdns.RecordKind) kind {
	switch k := k.(type) {
	case mdns.A:
		return kind{Type: "A", Addr: k.Addr.String()}
	case mdns.AAAA:
		return kind{Type: "AAAA", Addr: k.Addr.String()}
	case mdns.CNAME:
		return kind{Type: "CNAME", Target: k.Target}
	case mdns.MX:
		return kind{Type: "MX", Preference: k.Preference, Target: k.Exchange}
	case mdns.NS:
		return kind{Type: "NS", Target: k.Host}
	case mdns.SRV:
		return kind{Type: "SRV", Priority: k.Priority, Weight: k.Weight, Port: k.Port, Target: k.Target}
	case mdns.PTR:
		return kind{Type: "PTR", Target: k.Target}
	case mdns.TXT:
		entries := k.Attributes.Entries()
		txt := make([]txtEntry, 0, len(entries))
		for _, e := range entries {
			txt = append(txt, txtEntry{Key: e.Key, Kind: e.Value.Kind.String(), Value: e.Value.Data})
		}
		return kind{Type: "TXT", Txt: txt}
	case mdns.Unimplemented:
		return kind{Type: "UNIMPLEMENTED", RRType: k.Type, Data: k.Data}
	default:
		return kind{Type: "UNKNOWN"}
	}
}

func toRecords(records []record) ([]mdns.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]mdns.Record, 0, len(records))
	for _, r := range records {
		k, err := toKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.Name, err)
		}
		out = append(out, mdns.Record{
			Name:       r.Name,
			Class:      mdns.Class(r.Class),
			CacheFlush: r.CacheFlush,
			TTL:        r.TTL,
			Kind:       k,
		})
	}
	return out, nil
}

func toKind(k kind) (mdns.RecordKind, error) {
	switch k.Type {
	case "A", "AAAA":
		addr, err := netip.ParseAddr(k.Addr)
		if err != nil {
			return nil, err
		}
		if k.Type == "A" {
			return mdns.A{Addr: addr}, nil
		}
		return mdns.AAAA{Addr: addr}, nil
	case "CNAME":
		return mdns.CNAME{Target: k.Target}, nil
	case "MX":
		return mdns.MX{Preference: k.Preference, Exchange: k.Target}, nil
	case "NS":
		return mdns.NS{Host: k.Target}, nil
	case "SRV":
		return mdns.SRV{Priority: k.Priority, Weight: k.Weight, Port: k.Port, Target: k.Target}, nil
	case "PTR":
		return mdns.PTR{Target: k.Target}, nil
	case "TXT":
		entries := make([]mdns.TxtEntry, 0, len(k.Txt))
		for _, e := range k.Txt {
			v, err := toValue(e)
			if err != nil {
				return nil, err
			}
			entries = append(entries, mdns.TxtEntry{Key: e.Key, Value: v})
		}
		return mdns.TXT{Attributes: mdns.NewTxtAttributes(entries...)}, nil
	case "UNIMPLEMENTED":
		return mdns.Unimplemented{Type: k.RRType, Data: k.Data}, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", k.Type)
	}
}

func toValue(e txtEntry) (mdns.TxtValue, error) {
	switch e.Kind {
	case mdns.TxtNone.String():
		return mdns.NoValue(), nil
	case mdns.TxtEmpty.String():
		return mdns.EmptyValue(), nil
	case mdns.TxtData.String():
		return mdns.Value(e.Value), nil
	default:
		return mdns.TxtValue{}, fmt.Errorf("key %q: unknown TXT value kind %q", e.Key, e.Kind)
	}
}
