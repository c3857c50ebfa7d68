/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"strings"

	"github.com/miekg/dns"
)

// CanonicalName lower-cases a domain name and strips any trailing dot.
func CanonicalName(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".")
}

// ValidHostname checks that a name is usable as a DNS query name:
// printable, dot-separated labels of at most 63 octets, at most 253
// octets overall, and at least two labels.
func ValidHostname(name string) bool {
	if len(name) == 0 || len(name) > 253 {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] == 0x7f {
			return false
		}
	}
	idx := strings.IndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return false
	}
	return true
}

// FindZone maps a hostname to the zone it belongs to: everything after
// the leftmost label must equal a configured zone apex exactly. The
// leftmost label is returned as the name under the zone. A hostname
// that is invalid or lands in no configured zone returns nil.
func FindZone(hostname string) (*Zone, string) {
	hostname = CanonicalName(hostname)
	if !ValidHostname(hostname) {
		return nil, ""
	}
	idx := strings.IndexByte(hostname, '.')
	label := hostname[:idx]
	apex := hostname[idx+1:]
	zone, ok := Zones.Get(apex)
	if !ok {
		return nil, ""
	}
	return zone, label
}
