package geofence

import (
	"fmt"
	"net/netip"
)

// TrustedNetworks is the allow-list of on-premises CIDR prefixes. A client
// whose IP falls inside any prefix is treated as physically on campus even
// when its reported GPS coordinates are unusable.
type TrustedNetworks struct {
	prefixes []netip.Prefix
}

// ParseTrustedNetworks builds the allow-list from CIDR strings.
func ParseTrustedNetworks(cidrs []string) (*TrustedNetworks, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse trusted network %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return &TrustedNetworks{prefixes: prefixes}, nil
}

// Contains reports whether the textual IP belongs to any trusted prefix.
// Unparseable addresses are never trusted.
func (t *TrustedNetworks) Contains(ip string) bool {
	if t == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range t.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
