package mdnsjson

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdns "github.com/elum-utils/mdnsdiscovery"
)

func TestRoundTrip(t *testing.T) {
	in := &mdns.Response{
		Answers: []mdns.Record{
			{Name: "_ipp._tcp.local", Class: mdns.ClassIN, TTL: 4500, Kind: mdns.PTR{Target: "Printer._ipp._tcp.local"}},
		},
		Nameservers: []mdns.Record{
			{Name: "local", Class: mdns.ClassIN, TTL: 3600, Kind: mdns.NS{Host: "ns.local"}},
			{Name: "local", Class: mdns.ClassIN, TTL: 3600, Kind: mdns.MX{Preference: 10, Exchange: "mail.local"}},
		},
		Additional: []mdns.Record{
			{Name: "Printer._ipp._tcp.local", Class: mdns.ClassIN, CacheFlush: true, TTL: 120,
				Kind: mdns.SRV{Priority: 1, Weight: 2, Port: 631, Target: "printer.local"}},
			{Name: "Printer._ipp._tcp.local", Class: mdns.ClassIN, CacheFlush: true, TTL: 4500,
				Kind: mdns.TXT{Attributes: mdns.NewTxtAttributes(
					mdns.TxtEntry{Key: "txtvers", Value: mdns.Value([]byte("1"))},
					mdns.TxtEntry{Key: "PlugIns", Value: mdns.EmptyValue()},
					mdns.TxtEntry{Key: "passreq", Value: mdns.NoValue()},
					mdns.TxtEntry{Key: "bin", Value: mdns.Value([]byte{0xff, 0x00})},
				)}},
			{Name: "printer.local", Class: mdns.ClassIN, TTL: 120, Kind: mdns.A{Addr: netip.MustParseAddr("192.168.1.30")}},
			{Name: "printer.local", Class: mdns.ClassIN, TTL: 120, Kind: mdns.AAAA{Addr: netip.MustParseAddr("fe80::30")}},
			{Name: "www.local", Class: mdns.ClassIN, TTL: 120, Kind: mdns.CNAME{Target: "printer.local"}},
			{Name: "local", Class: mdns.Class(254), TTL: 60, Kind: mdns.Unimplemented{Type: 6, Data: []byte{1, 2, 3}}},
		},
	}

	b, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"empty"`)
	assert.Contains(t, string(b), `"type":"UNIMPLEMENTED"`)

	out, err := Unmarshal(b)
	require.NoError(t, err)
	require.Len(t, out.Answers, len(in.Answers))
	require.Len(t, out.Nameservers, len(in.Nameservers))
	require.Len(t, out.Additional, len(in.Additional))

	for i, rec := range in.Records() {
		got := out.Records()[i]
		assert.Equal(t, rec.Name, got.Name)
		assert.Equal(t, rec.Class, got.Class)
		assert.Equal(t, rec.CacheFlush, got.CacheFlush)
		assert.Equal(t, rec.TTL, got.TTL)
		if txt, ok := rec.Kind.(mdns.TXT); ok {
			gotTxt, ok := got.Kind.(mdns.TXT)
			require.True(t, ok)
			assert.True(t, txt.Attributes.Equal(gotTxt.Attributes))
			continue
		}
		assert.Equal(t, rec.Kind, got.Kind)
	}
}

func TestMarshal_EmptyResponse(t *testing.T) {
	b, err := Marshal(&mdns.Response{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answers":[],"nameservers":[],"additional":[]}`, string(b))

	out, err := Unmarshal(b)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"answers":[{"name":"x","kind":{"type":"HINFO"}}]}`))
	assert.ErrorContains(t, err, `unknown record type "HINFO"`)

	_, err = Unmarshal([]byte(`{"answers":[{"name":"x","kind":{"type":"A","addr":"nope"}}]}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"answers":[{"name":"x","kind":{"type":"TXT","txt":[{"key":"k","kind":"odd"}]}}]}`))
	assert.ErrorContains(t, err, "unknown TXT value kind")

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
