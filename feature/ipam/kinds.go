package ipam

import (
	"fmt"
	"net/netip"

	"infoblox-sync/core/reconcile"
)

const (
	// KindNetwork is a routed IPv4 network (Infoblox "network", inventory prefix).
	KindNetwork reconcile.Kind = "network"

	// KindIPAddress is a single address inside a network.
	KindIPAddress reconcile.Kind = "ipaddress"
)

// Field names used as identifiers and tracked attributes.
const (
	FieldNetwork = "network"
	FieldAddress = "address"
	FieldPrefix  = "prefix"
	FieldStatus  = "status"
	FieldDNSName = "dns_name"
)

// Address status values.
const (
	StatusActive   = "active"
	StatusReserved = "reserved"
)

// Schema returns the reconciliation schema for networks and addresses.
func Schema() *reconcile.Schema {
	return reconcile.NewSchema(
		reconcile.KindSpec{
			Kind:        KindNetwork,
			Rank:        0,
			Identifiers: []string{FieldNetwork},
		},
		reconcile.KindSpec{
			Kind:        KindIPAddress,
			Rank:        1,
			Identifiers: []string{FieldAddress, FieldPrefix},
			Attributes:  []string{FieldStatus, FieldDNSName},
		},
	)
}

// NewNetwork builds a network record.
func NewNetwork(cidr, ref string) reconcile.Record {
	return reconcile.Record{
		Kind: KindNetwork,
		Keys: []string{cidr},
		Ref:  ref,
	}
}

// NewIPAddress builds an address record. Empty attributes are left out.
func NewIPAddress(address, prefix, status, dnsName, ref string) reconcile.Record {
	attrs := make(map[string]string, 2)
	if status != "" {
		attrs[FieldStatus] = status
	}
	if dnsName != "" {
		attrs[FieldDNSName] = dnsName
	}
	return reconcile.Record{
		Kind:  KindIPAddress,
		Keys:  []string{address, prefix},
		Attrs: attrs,
		Ref:   ref,
	}
}

// NetworkOf returns the CIDR of a network record or the owning CIDR of an address record.
func NetworkOf(rec reconcile.Record) string {
	switch rec.Kind {
	case KindNetwork:
		if len(rec.Keys) > 0 {
			return rec.Keys[0]
		}
	case KindIPAddress:
		if len(rec.Keys) > 1 {
			return rec.Keys[1]
		}
	}
	return ""
}

// HostOf returns the bare IP of an address record ("10.0.0.5" for "10.0.0.5/24").
func HostOf(rec reconcile.Record) (netip.Addr, error) {
	if rec.Kind != KindIPAddress || len(rec.Keys) == 0 {
		return netip.Addr{}, fmt.Errorf("%s record is not an address", rec.Kind)
	}
	p, err := netip.ParsePrefix(rec.Keys[0])
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address %q: %w", rec.Keys[0], err)
	}
	return p.Addr(), nil
}

// CanonicalNetwork parses a CIDR and returns its masked string form.
func CanonicalNetwork(cidr string) (string, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", fmt.Errorf("invalid network %q: %w", cidr, err)
	}
	return p.Masked().String(), nil
}

// AddressInNetwork formats ip with the prefix length of network ("10.0.0.5/24").
func AddressInNetwork(ip, network string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("invalid ip %q: %w", ip, err)
	}
	p, err := netip.ParsePrefix(network)
	if err != nil {
		return "", fmt.Errorf("invalid network %q: %w", network, err)
	}
	if !p.Contains(addr) {
		return "", fmt.Errorf("ip %s not in network %s", addr, p)
	}
	return netip.PrefixFrom(addr, p.Bits()).String(), nil
}
