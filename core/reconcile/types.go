package reconcile

import (
	"strings"
	"time"
)

// KeySeparator joins identifier key values into a single identifier string.
const KeySeparator = "__"

// Kind names an entity type (e.g., "network", "ipaddress").
type Kind string

// KindSpec describes how records of a kind are matched and compared.
type KindSpec struct {
	// Kind is the entity type name.
	Kind Kind

	// Rank orders kinds relative to each other. Lower ranks are created and updated first
	// and deleted last, so a kind referencing another must have a higher rank.
	Rank int

	// Identifiers lists the key field names, in order.
	Identifiers []string

	// Attributes lists the tracked attribute names compared for update detection.
	Attributes []string
}

// Record is a single entity loaded by an adapter.
type Record struct {
	// Kind is the entity type.
	Kind Kind `json:"kind" yaml:"kind"`

	// Keys holds the identifier values, in KindSpec.Identifiers order.
	Keys []string `json:"keys" yaml:"keys"`

	// Attrs holds tracked attribute values. A missing entry and an empty string are equivalent.
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`

	// Ref is the side-specific opaque reference (e.g., an Infoblox _ref or a row UUID).
	// It is never compared.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Identifier returns the unique identifier of the record within its kind.
func (r Record) Identifier() string {
	return strings.Join(r.Keys, KeySeparator)
}

// Attr returns the canonical value of an attribute. Absent and empty are both "".
func (r Record) Attr(name string) string {
	if r.Attrs == nil {
		return ""
	}
	return r.Attrs[name]
}

// clone returns a deep copy so operations never alias snapshot storage.
func (r Record) clone() Record {
	out := Record{Kind: r.Kind, Ref: r.Ref}
	out.Keys = append([]string(nil), r.Keys...)
	if r.Attrs != nil {
		out.Attrs = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// OpType represents the type of planned operation.
type OpType string

const (
	// OpCreate creates an entity on the target.
	OpCreate OpType = "create"
	// OpUpdate updates changed attributes of an entity on the target.
	OpUpdate OpType = "update"
	// OpDelete deletes an entity from the target.
	OpDelete OpType = "delete"
)

// FieldChange is a single changed attribute carried by an update.
type FieldChange struct {
	Field string `json:"field" yaml:"field"`
	Old   string `json:"old" yaml:"old"`
	New   string `json:"new" yaml:"new"`
}

// Operation is a planned mutation against the target.
type Operation struct {
	// Type specifies the operation to perform.
	Type OpType `json:"type" yaml:"type"`

	// Kind is the entity type.
	Kind Kind `json:"kind" yaml:"kind"`

	// ID is the entity identifier.
	ID string `json:"id" yaml:"id"`

	// Record is the source record for creates and the target record for updates and deletes.
	Record Record `json:"record" yaml:"record"`

	// Changes lists the changed attributes. Only populated for OpUpdate.
	Changes []FieldChange `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// Plan is the ordered edit script transforming the target into the source.
type Plan struct {
	// Operations are in application order.
	Operations []Operation `json:"operations" yaml:"operations"`

	// Unchanged counts in-sync entities per kind.
	Unchanged map[Kind]int `json:"unchanged" yaml:"unchanged"`
}

// Count returns the number of planned operations of the given type.
func (p *Plan) Count(t OpType) int {
	n := 0
	for _, op := range p.Operations {
		if op.Type == t {
			n++
		}
	}
	return n
}

// Empty reports whether the plan contains no operations.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// OpStatus is the outcome of an attempted operation.
type OpStatus string

const (
	// StatusSucceeded marks a successful operation.
	StatusSucceeded OpStatus = "succeeded"
	// StatusFailed marks an operation that returned an error.
	StatusFailed OpStatus = "failed"
)

// OperationResult records what happened to one attempted operation.
type OperationResult struct {
	Type   OpType   `json:"type" yaml:"type"`
	Kind   Kind     `json:"kind" yaml:"kind"`
	ID     string   `json:"id" yaml:"id"`
	Status OpStatus `json:"status" yaml:"status"`

	// Ref is the identifier assigned by the target on create.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty"`

	// AlreadyAbsent is set when a delete found nothing to delete.
	AlreadyAbsent bool `json:"already_absent,omitempty" yaml:"already_absent,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failure describes a failed operation with enough detail for manual remediation.
type Failure struct {
	Type    OpType `json:"type" yaml:"type"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	ID      string `json:"id" yaml:"id"`
	Reason  string `json:"reason" yaml:"reason"`
	Message string `json:"message" yaml:"message"`
}

// KindCounts aggregates results for a single kind.
type KindCounts struct {
	Created   int `json:"created" yaml:"created"`
	Updated   int `json:"updated" yaml:"updated"`
	Deleted   int `json:"deleted" yaml:"deleted"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Attempted returns the number of operations attempted for the kind.
func (c KindCounts) Attempted() int {
	return c.Created + c.Updated + c.Deleted + c.Failed
}

// Report is the externally observable result of a reconciliation run.
type Report struct {
	// Source and Target name the adapters of this run.
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`

	// DryRun is set when the plan was computed but not applied.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// Planned is the number of operations in the plan.
	Planned int `json:"planned" yaml:"planned"`

	// Counts holds per-kind totals.
	Counts map[Kind]*KindCounts `json:"counts" yaml:"counts"`

	// Failures lists failed operations in plan order.
	Failures []Failure `json:"failures" yaml:"failures"`

	// Results lists every attempted operation in plan order.
	Results []OperationResult `json:"results" yaml:"results"`

	// Aborted is set when a deadline or cancellation stopped dispatch before the plan finished.
	Aborted bool `json:"aborted" yaml:"aborted"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// CountsFor returns the counters for a kind, creating them if needed.
func (r *Report) CountsFor(kind Kind) *KindCounts {
	if r.Counts == nil {
		r.Counts = make(map[Kind]*KindCounts)
	}
	c, ok := r.Counts[kind]
	if !ok {
		c = &KindCounts{}
		r.Counts[kind] = c
	}
	return c
}

// Totals sums counters across all kinds.
func (r *Report) Totals() KindCounts {
	var t KindCounts
	for _, c := range r.Counts {
		t.Created += c.Created
		t.Updated += c.Updated
		t.Deleted += c.Deleted
		t.Unchanged += c.Unchanged
		t.Failed += c.Failed
	}
	return t
}

// Filter decides whether a record takes part in a run.
type Filter func(Record) bool

// Options controls planning and execution.
type Options struct {
	// DryRun computes the plan without applying it.
	DryRun bool

	// Workers bounds concurrent operations within a phase. Values below 1 mean 1.
	Workers int

	// Filter restricts both snapshots before diffing. Nil keeps everything.
	Filter Filter

	// Kinds restricts the run to the listed kinds. Empty means every registered kind.
	Kinds []Kind
}
