// Package sync runs IPAM synchronizations between Infoblox and the inventory.
//
// A run picks its source of truth from a Direction, restricts itself to the requested
// networks, and hands both adapters to the reconcile engine. Concurrent identical requests
// share one run; every new run loads fresh snapshots.
//
// # Reports
//
// Applied run reports are logged and, when enabled, archived as JSON objects under the
// configured prefix of the storage bucket. Reports beyond the retention count are pruned
// after each archive. Render writes plans and reports as JSON or YAML.
//
// # HTTP Endpoints
//
//   - POST /sync : Run a synchronization (body: direction, networks, dry_run, workers).
//   - GET /sync/plan : Compute the plan only (query: direction, networks).
//   - GET /sync/reports : List archived reports.
//   - GET /sync/reports/* : Get one archived report.
//   - DELETE /sync/reports/* : Delete one archived report.
package sync
