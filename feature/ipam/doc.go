// Package ipam defines the entity kinds exchanged between Infoblox and the inventory.
//
// Two kinds are reconciled:
//   - network: keyed by its CIDR, no tracked attributes.
//   - ipaddress: keyed by (address, prefix), tracking status and dns_name.
//
// Addresses are written as "ip/prefixlen" of their owning network and reference that
// network by CIDR, so networks rank before addresses.
package ipam
