// Package inventory implements the source-of-truth side of the IPAM synchronization.
//
// The Adapter reads networks and addresses from the inventory database through GORM and
// implements the create, update and delete primitives of reconcile.Adapter against it.
//
// # Tables
//
//   - ipam_prefixes: one row per network, unique on prefix.
//   - ipam_ip_addresses: one row per address, unique on (address, prefix).
//
// Rows are keyed by generated UUIDs, which become the records' Ref.
//
// # Errors
//
// Duplicate keys are reported as *reconcile.ConflictError and missing rows as
// reconcile.ErrNotFound. A network that still owns addresses cannot be deleted.
package inventory
