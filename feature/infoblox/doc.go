// Package infoblox implements the appliance side of the IPAM synchronization.
//
// # Client
//
// Client wraps the infoblox-go-client connector and object manager. Writes go through the
// object manager (networks, host, A and PTR records, fixed addresses); searches the library
// has no type for are sent as generic objects through the connector. The connector's
// requestor authenticates the first request with basic auth and reuses the ibapauth
// session cookie afterwards. Besides the adapter's objects the client exposes lookups
// (host, A and PTR records, DNS views, DHCP leases) and allocation (next available IP,
// fixed address reservation).
//
// # Adapter
//
// Adapter maps networks and their USED addresses onto ipam records:
//   - An address is active when a host record, A record or lease holds it, reserved when
//     only a fixed address or reservation does.
//   - dns_name is the first name bound to the address.
//   - Ref is the owning host record, A record or fixed address.
//
// New addresses are created as the object they load back as. Reserved addresses become
// fixed addresses carrying the DNS name, active ones a host record or, with record_type
// "a", an A record plus PTR. An active address without a DNS name and any status change
// are reported as reconcile.ErrUnsupported.
package infoblox
