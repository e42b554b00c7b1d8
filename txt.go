package mdns

import (
	"bytes"
	"strings"
)

// TxtKind distinguishes the three ways a DNS-SD attribute can be present
// (RFC 6763 section 6.4).
type TxtKind uint8

const (
	// TxtNone is an attribute with no '=' at all, e.g. "passreq".
	TxtNone TxtKind = iota
	// TxtEmpty is an attribute with an '=' and nothing after it, e.g. "PlugIns=".
	TxtEmpty
	// TxtData is an attribute with a non-empty value, e.g. "PlugIns=JPEG".
	TxtData
)

func (k TxtKind) String() string {
	switch k {
	case TxtNone:
		return "none"
	case TxtEmpty:
		return "empty"
	case TxtData:
		return "data"
	default:
		return "unknown"
	}
}

// TxtValue is the value of a TXT attribute. Data is only set for TxtData
// and holds raw bytes, which are not necessarily UTF-8.
type TxtValue struct {
	Kind TxtKind
	Data []byte
}

// NoValue returns the value of an attribute present without '='.
func NoValue() TxtValue { return TxtValue{Kind: TxtNone} }

// EmptyValue returns the value of an attribute present as "key=".
func EmptyValue() TxtValue { return TxtValue{Kind: TxtEmpty} }

// Value returns the value of an attribute present as "key=data". An empty
// data slice yields EmptyValue.
func Value(data []byte) TxtValue {
	if len(data) == 0 {
		return EmptyValue()
	}
	return TxtValue{Kind: TxtData, Data: append([]byte(nil), data...)}
}

// Equal reports whether both values have the same kind and bytes.
func (v TxtValue) Equal(o TxtValue) bool {
	return v.Kind == o.Kind && bytes.Equal(v.Data, o.Data)
}

func (v TxtValue) String() string {
	switch v.Kind {
	case TxtNone:
		return "<none>"
	case TxtEmpty:
		return `""`
	default:
		return string(v.Data)
	}
}

// TxtEntry is one key/value attribute of a TXT record.
type TxtEntry struct {
	Key   string
	Value TxtValue
}

// TxtAttributes maps case-insensitive keys to values. Keys keep the case of
// their first occurrence and entries keep wire order.
type TxtAttributes struct {
	entries []TxtEntry
	index   map[string]int
}

// NewTxtAttributes builds attributes from entries, applying the same
// first-occurrence rule as decoding.
func NewTxtAttributes(entries ...TxtEntry) TxtAttributes {
	var t TxtAttributes
	for _, e := range entries {
		t.add(e.Key, e.Value)
	}
	return t
}

// add inserts key unless a key equal to it ignoring case already exists.
// It reports whether the entry was inserted.
func (t *TxtAttributes) add(key string, value TxtValue) bool {
	folded := strings.ToLower(key)
	if _, ok := t.index[folded]; ok {
		return false
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	t.index[folded] = len(t.entries)
	t.entries = append(t.entries, TxtEntry{Key: key, Value: value})
	return true
}

// Get looks up a key ignoring case.
func (t TxtAttributes) Get(key string) (TxtValue, bool) {
	i, ok := t.index[strings.ToLower(key)]
	if !ok {
		return TxtValue{}, false
	}
	return t.entries[i].Value, true
}

// Has reports whether the key is present, ignoring case.
func (t TxtAttributes) Has(key string) bool {
	_, ok := t.index[strings.ToLower(key)]
	return ok
}

// Len returns the number of distinct keys.
func (t TxtAttributes) Len() int {
	return len(t.entries)
}

// Entries returns the attributes in wire order.
func (t TxtAttributes) Entries() []TxtEntry {
	return append([]TxtEntry(nil), t.entries...)
}

// Equal reports whether both sets hold the same keys, in the same order,
// with equal values.
func (t TxtAttributes) Equal(o TxtAttributes) bool {
	if len(t.entries) != len(o.entries) {
		return false
	}
	for i, e := range t.entries {
		if e.Key != o.entries[i].Key || !e.Value.Equal(o.entries[i].Value) {
			return false
		}
	}
	return true
}

// parseTxt decodes the character-strings of a TXT record. Each string is
// split at its first '='. A key seen again, ignoring case, is dropped
// (RFC 6763 section 6.4). Strings with an empty key are ignored.
func parseTxt(strs [][]byte) TxtAttributes {
	var t TxtAttributes
	for _, s := range strs {
		key, value, found := bytes.Cut(s, []byte{'='})
		if len(key) == 0 {
			continue
		}
		v := NoValue()
		if found {
			v = Value(value)
		}
		t.add(strings.ToValidUTF8(string(key), "\uFFFD"), v)
	}
	return t
}
