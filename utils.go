package mdns

import (
	"strings"
)

// parseSubtypes extracts the primary service type and any subtypes from
// a service specification string. The input format follows DNS-SD conventions
// where subtypes are comma-separated: "service,subtype1,subtype2".
func parseSubtypes(service string) (string, []string) {
	subtypes := strings.Split(service, ",")
	return subtypes[0], subtypes[1:]
}

// trimDot removes leading and trailing dots from a DNS name string.
//
// Example: ".local." becomes "local", "service." becomes "service"
func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// decodeName turns a name as presented by miekg/dns ("_http._tcp.local.")
// into the form used throughout this package: unescaped, without the
// trailing root dot.
func decodeName(s string) string {
	return dnsUnescape(strings.TrimSuffix(s, "."))
}

// dnsUnescape converts a DNS presentation-escaped string back to its
// original form by processing escape sequences as defined in RFC 1035.
//
// Supported escape sequences:
//   - "\\"    -> backslash character
//   - "\ "    -> space character
//   - "\."    -> dot character
//   - "\DDD"  -> byte with the given decimal value
//
// miekg/dns produces these for names and TXT strings containing
// special or non-printable bytes.
func dnsUnescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		switch {
		case i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]):
			num := int(s[i+1]-'0')*100 + int(s[i+2]-'0')*10 + int(s[i+3]-'0')
			b.WriteByte(byte(num))
			i += 3
		case i+1 < len(s):
			b.WriteByte(s[i+1])
			i++
		}
		// a trailing backslash is dropped
	}
	return b.String()
}

// isDigit checks if a byte represents an ASCII digit character (0-9).
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
