package infoblox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"infoblox-sync/core/reconcile"
	"infoblox-sync/feature/ipam"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Name is the adapter name used in reports.
const Name = "infoblox"

// placeholderMAC is used for fixed addresses created without a known hardware address.
const placeholderMAC = "00:00:00:00:00:00"

// Adapter implements reconcile.Adapter for an Infoblox appliance.
type Adapter struct {
	client *Client
	cfg    Config
	logger *zap.Logger
}

// NewAdapter creates a new Infoblox adapter on top of a WAPI client.
func NewAdapter(client *Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, cfg: client.cfg, logger: logger}
}

// Name returns the unique name of this adapter.
func (a *Adapter) Name() string {
	return Name
}

// Load reads every network of the network view and the used addresses of each network.
func (a *Adapter) Load(ctx context.Context) (*reconcile.Snapshot, error) {
	networks, err := a.client.GetNetworks(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(networks, func(i, j int) bool {
		return networks[i].Network < networks[j].Network
	})

	workers := a.cfg.LoadWorkers
	if workers < 1 {
		workers = 1
	}

	// One slot per network so results do not depend on completion order
	addresses := make([][]IPv4Address, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, n := range networks {
		i, n := i, n
		g.Go(func() error {
			used, err := a.client.GetIPv4Addresses(gctx, n.Network, "USED")
			if err != nil {
				return fmt.Errorf("addresses of %s: %w", n.Network, err)
			}
			addresses[i] = used
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := reconcile.NewSnapshot(Name)
	total := 0
	for i, n := range networks {
		cidr, err := ipam.CanonicalNetwork(n.Network)
		if err != nil {
			return nil, err
		}
		if err := snap.Add(ipam.NewNetwork(cidr, n.Ref)); err != nil {
			return nil, err
		}

		for _, addr := range addresses[i] {
			rec, err := addressRecord(cidr, addr)
			if err != nil {
				return nil, err
			}
			if err := snap.Add(rec); err != nil {
				return nil, err
			}
			total++
		}
	}

	a.logger.Debug("Loaded infoblox snapshot",
		zap.Int("networks", len(networks)),
		zap.Int("addresses", total))

	return snap, nil
}

// addressRecord maps an ipv4address object onto an address record.
func addressRecord(network string, addr IPv4Address) (reconcile.Record, error) {
	address, err := ipam.AddressInNetwork(addr.IPAddress, network)
	if err != nil {
		return reconcile.Record{}, err
	}

	dnsName := ""
	if len(addr.Names) > 0 {
		dnsName = addr.Names[0]
	}
	return ipam.NewIPAddress(address, network, addressStatus(addr), dnsName, addressRef(addr)), nil
}

// addressStatus maps usage types onto an address status. Addresses only held by a fixed
// address or reservation are reserved, everything else in use is active.
func addressStatus(addr IPv4Address) string {
	if hasType(addr.Types, typeHost) || hasType(addr.Types, typeA) || hasType(addr.Types, typeLease) {
		return ipam.StatusActive
	}
	if hasType(addr.Types, typeFixedAddress) || hasType(addr.Types, typeReservation) {
		return ipam.StatusReserved
	}
	return ipam.StatusActive
}

// addressRef picks the object that owns the address: a host record first, then an A
// record, then a fixed address, then the ipv4address object itself.
func addressRef(addr IPv4Address) string {
	for _, prefix := range []string{refHost, refA, refFixedAddress} {
		for _, obj := range addr.Objects {
			if strings.HasPrefix(obj, prefix) {
				return obj
			}
		}
	}
	return addr.Ref
}

// Create creates a network or an address. The object an address becomes follows its status
// so that it loads back unchanged: reserved addresses become fixed addresses, active ones a
// host record or an A record (RecordType) which need a DNS name.
func (a *Adapter) Create(ctx context.Context, rec reconcile.Record) (string, error) {
	switch rec.Kind {
	case ipam.KindNetwork:
		ref, err := a.client.CreateNetwork(ctx, ipam.NetworkOf(rec))
		return ref, translate(rec, err)

	case ipam.KindIPAddress:
		host, err := ipam.HostOf(rec)
		if err != nil {
			return "", err
		}
		ip := host.String()
		network := ipam.NetworkOf(rec)
		fqdn := rec.Attr(ipam.FieldDNSName)

		switch status := rec.Attr(ipam.FieldStatus); status {
		case ipam.StatusReserved:
			ref, err := a.client.CreateFixedAddress(ctx, network, ip, placeholderMAC, fqdn)
			return ref, translate(rec, err)
		case ipam.StatusActive, "":
			if fqdn == "" {
				return "", fmt.Errorf("create active address %s without dns_name: %w", ip, reconcile.ErrUnsupported)
			}
		default:
			return "", fmt.Errorf("create address with status %q: %w", status, reconcile.ErrUnsupported)
		}

		if a.cfg.RecordType != RecordA {
			ref, err := a.client.CreateHostRecord(ctx, fqdn, network, ip)
			return ref, translate(rec, err)
		}

		ref, err := a.client.CreateARecord(ctx, fqdn, network, ip)
		if err != nil {
			return "", translate(rec, err)
		}
		if a.cfg.CreatePTR {
			// The A record is the synchronized object, a missing PTR only affects reverse lookups
			if _, err := a.client.CreatePTRRecord(ctx, fqdn, network, ip); err != nil {
				a.logger.Warn("Failed to create PTR record",
					zap.String("fqdn", fqdn),
					zap.String("ip", ip),
					zap.Error(err))
			}
		}
		return ref, nil

	default:
		return "", fmt.Errorf("create %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}
}

// Update renames the object owning an address. Status is derived from the objects bound to
// an address and cannot be written directly; a source without status leaves it alone.
func (a *Adapter) Update(ctx context.Context, rec reconcile.Record, changes []reconcile.FieldChange) error {
	if rec.Kind != ipam.KindIPAddress {
		return fmt.Errorf("update %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}

	fields := make(map[string]interface{})
	for _, c := range changes {
		switch c.Field {
		case ipam.FieldDNSName:
			switch refKind(rec.Ref) {
			case refHost, refA:
				if c.New == "" {
					return fmt.Errorf("clear dns_name of %s: %w", rec.Ref, reconcile.ErrUnsupported)
				}
			case refFixedAddress:
			default:
				return fmt.Errorf("set dns_name on %s: %w", rec.Ref, reconcile.ErrUnsupported)
			}
			fields["name"] = c.New
		case ipam.FieldStatus:
			if c.New == "" {
				continue
			}
			return fmt.Errorf("set status to %q: %w", c.New, reconcile.ErrUnsupported)
		default:
			return fmt.Errorf("update field %s: %w", c.Field, reconcile.ErrUnsupported)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	_, err := a.client.UpdateObject(ctx, rec.Ref, fields)
	return translate(rec, err)
}

// Delete removes the object behind the record's reference, resolving it first when the
// record carries none. PTR records created next to an A record go with it.
func (a *Adapter) Delete(ctx context.Context, rec reconcile.Record) error {
	ref := rec.Ref
	if ref == "" {
		resolved, err := a.resolveRef(ctx, rec)
		if err != nil || resolved == "" {
			return err
		}
		ref = resolved
	}
	if err := a.client.DeleteObject(ctx, ref); err != nil {
		return translate(rec, err)
	}
	if refKind(ref) == refA && a.cfg.CreatePTR {
		a.deletePTR(ctx, rec)
	}
	return nil
}

func (a *Adapter) deletePTR(ctx context.Context, rec reconcile.Record) {
	host, err := ipam.HostOf(rec)
	if err != nil {
		return
	}
	ptrs, err := a.client.GetPTRRecordsByIP(ctx, host.String())
	if err == nil {
		for _, ptr := range ptrs {
			if err = a.client.DeleteObject(ctx, ptr.Ref); err != nil {
				break
			}
		}
	}
	if err != nil {
		a.logger.Warn("Failed to delete PTR record", zap.String("ip", host.String()), zap.Error(err))
	}
}

// resolveRef finds the object behind a record without reference. A fixed address is
// released while resolving, in which case the returned reference is empty.
func (a *Adapter) resolveRef(ctx context.Context, rec reconcile.Record) (string, error) {
	switch rec.Kind {
	case ipam.KindNetwork:
		network, err := a.client.FindNetwork(ctx, ipam.NetworkOf(rec))
		if err != nil {
			return "", translate(rec, err)
		}
		if network == nil {
			return "", fmt.Errorf("network %s: %w", ipam.NetworkOf(rec), reconcile.ErrNotFound)
		}
		return network.Ref, nil

	case ipam.KindIPAddress:
		host, err := ipam.HostOf(rec)
		if err != nil {
			return "", err
		}
		ip := host.String()

		hosts, err := a.client.GetHostRecordsByIP(ctx, ip)
		if err != nil {
			return "", translate(rec, err)
		}
		if len(hosts) > 0 {
			return hosts[0].Ref, nil
		}
		records, err := a.client.GetARecordsByIP(ctx, ip)
		if err != nil {
			return "", translate(rec, err)
		}
		if len(records) > 0 {
			return records[0].Ref, nil
		}

		released, err := a.client.ReleaseFixedAddress(ctx, ipam.NetworkOf(rec), ip)
		if err != nil {
			return "", translate(rec, err)
		}
		if released == "" {
			return "", fmt.Errorf("address %s: %w", host, reconcile.ErrNotFound)
		}
		return "", nil

	default:
		return "", fmt.Errorf("delete %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}
}

// translate maps WAPI errors onto the reconcile error vocabulary.
func translate(rec reconcile.Record, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.NotFound():
			return fmt.Errorf("%w: %v", reconcile.ErrNotFound, err)
		case apiErr.Conflict():
			return &reconcile.ConflictError{Kind: rec.Kind, ID: rec.Identifier(), Err: err}
		}
	}
	return err
}
