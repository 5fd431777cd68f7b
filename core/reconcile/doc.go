// Package reconcile provides a generic system for synchronizing two sources of
// inventory: a source of truth and a target that receives operations.
//
// The reconcile system is designed so that a run is fully reproducible:
//   - Both snapshots are loaded concurrently and completely before anything is compared
//   - Differences are computed per kind and per identifier, never from iteration order
//   - Operations are applied in a fixed order, with failures isolated per operation
//
// # Architecture
//
// The reconcile system consists of three main components:
//
// 1. Adapter: Side-specific implementations that load a complete Snapshot and expose
// create, update and delete primitives (e.g., the Infoblox appliance or the inventory DB).
//
// 2. Diff: Builds identifier sets per kind and emits creates (source only), deletes
// (target only) and updates carrying only the changed tracked attributes. Absent and empty
// attribute values are treated as the same value.
//
// 3. Apply: Executes a Plan against the target. Creates and updates of parent kinds
// (lower rank) run before their children, deletes run children first. A single failed
// operation is recorded in the Report and never blocks the rest.
//
// # Ordering
//
// Within a kind, operations follow ascending identifier order. A Plan for networks and
// addresses therefore looks like:
//
//	create network 10.0.0.0/24
//	create ipaddress 10.0.0.1/24__10.0.0.0/24
//	delete ipaddress 10.9.0.1/24__10.9.0.0/24
//	delete network 10.9.0.0/24
//
// # Usage Example
//
//	spec := &reconcile.Spec{
//	    Schema: ipam.Schema(),
//	    Source: infobloxAdapter,
//	    Target: inventoryAdapter,
//	}
//
//	// Plan only
//	plan, err := reconcile.ReconcileWithPlan(ctx, spec, reconcile.Options{})
//
//	// Full run
//	plan, report, err := reconcile.ReconcileAndApply(ctx, spec, reconcile.Options{Workers: 4})
//
// # Creating Adapters
//
// To support a new inventory source, implement the Adapter interface. The engine never
// needs to change.
package reconcile
