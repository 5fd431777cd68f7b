package infoblox

import (
	"context"
	"net/netip"

	"golang.org/x/sync/errgroup"
)

// LookupResult collects every DNS and DHCP object matching a name or address.
type LookupResult struct {
	Query  string       `json:"query" yaml:"query"`
	ByIP   bool         `json:"by_ip" yaml:"by_ip"`
	Hosts  []HostRecord `json:"hosts" yaml:"hosts"`
	A      []ARecord    `json:"a_records" yaml:"a_records"`
	PTR    []PTRRecord  `json:"ptr_records" yaml:"ptr_records"`
	Leases []Lease      `json:"leases" yaml:"leases"`
}

// Lookup queries host, A, PTR and lease objects concurrently. A query that parses as an IP
// address is matched against addresses, anything else against names.
func (c *Client) Lookup(ctx context.Context, query string) (*LookupResult, error) {
	res := &LookupResult{Query: query}
	if _, err := netip.ParseAddr(query); err == nil {
		res.ByIP = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if res.ByIP {
			res.Hosts, err = c.GetHostRecordsByIP(gctx, query)
		} else {
			res.Hosts, err = c.GetHostRecordsByName(gctx, query)
		}
		return err
	})
	g.Go(func() (err error) {
		if res.ByIP {
			res.A, err = c.GetARecordsByIP(gctx, query)
		} else {
			res.A, err = c.GetARecordsByName(gctx, query)
		}
		return err
	})
	g.Go(func() (err error) {
		if res.ByIP {
			res.PTR, err = c.GetPTRRecordsByIP(gctx, query)
		} else {
			res.PTR, err = c.GetPTRRecordsByName(gctx, query)
		}
		return err
	})
	g.Go(func() (err error) {
		if res.ByIP {
			res.Leases, err = c.GetDHCPLeasesByIP(gctx, query)
		} else {
			res.Leases, err = c.GetDHCPLeasesByHostname(gctx, query)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
