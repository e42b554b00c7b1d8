package mdns

import (
	"fmt"
)

// DefaultDomain is the mDNS domain used when none is given.
const DefaultDomain = "local"

// ServiceName builds the name to browse for a DNS-SD service type in a
// domain, e.g. ServiceName("_googlecast._tcp", "local") returns
// "_googlecast._tcp.local".
//
// A comma-separated subtype ("_http._tcp,_printer") selects the subtype
// browse name "_printer._sub._http._tcp.local" (RFC 6763 section 7.1).
// Only the first subtype is used since a session sends a single question.
func ServiceName(service, domain string) string {
	if domain == "" {
		domain = DefaultDomain
	}
	service, subtypes := parseSubtypes(service)
	name := fmt.Sprintf("%s.%s", trimDot(service), trimDot(domain))
	if len(subtypes) > 0 && trimDot(subtypes[0]) != "" {
		name = fmt.Sprintf("%s._sub.%s", trimDot(subtypes[0]), name)
	}
	return name
}
