package ipam

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"

	"infoblox-sync/core/reconcile"
)

// NetworkFilter restricts a run to networks contained in one of the given CIDRs and to the
// addresses of those networks. No CIDRs returns a nil filter, which keeps everything.
func NetworkFilter(cidrs []string) (reconcile.Filter, error) {
	if len(cidrs) == 0 {
		return nil, nil
	}

	var b netipx.IPSetBuilder
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid network filter %q: %w", cidr, err)
		}
		b.AddPrefix(p.Masked())
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("build network filter: %w", err)
	}

	return func(rec reconcile.Record) bool {
		p, err := netip.ParsePrefix(NetworkOf(rec))
		if err != nil {
			return false
		}
		return set.ContainsPrefix(p.Masked())
	}, nil
}

// ValidateAddress checks that an address belongs to its network and is a usable host address.
func ValidateAddress(address, network string) error {
	ap, err := netip.ParsePrefix(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	np, err := netip.ParsePrefix(network)
	if err != nil {
		return fmt.Errorf("invalid network %q: %w", network, err)
	}

	ip := ap.Addr()
	if !np.Contains(ip) {
		return fmt.Errorf("ip %s not in network %s", ip, np)
	}

	// /31 and /32 networks have no reserved network or broadcast address
	if ip.Is4() && np.Bits() < 31 {
		r := netipx.RangeOfPrefix(np)
		if r.From() == ip || r.To() == ip {
			return fmt.Errorf("ip %s is the network or broadcast address of %s", ip, np)
		}
	}
	return nil
}
