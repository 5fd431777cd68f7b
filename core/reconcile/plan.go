package reconcile

import (
	"fmt"
	"sort"
	"strings"
)

// Diff compares two snapshots and returns the ordered edit script that transforms
// target into source. It does NOT apply anything; use Apply for that.
//
// Per kind, identifiers only in source become creates, identifiers only in target become
// deletes, and shared identifiers whose tracked attributes differ become updates carrying
// only the changed fields. Creates and updates are ordered by ascending kind rank and
// deletes by descending kind rank; within a kind operations follow ascending identifier.
func Diff(schema *Schema, source, target *Snapshot, opts Options) (*Plan, error) {
	if schema == nil {
		return nil, fmt.Errorf("reconcile: schema is required")
	}
	if source == nil || target == nil {
		return nil, fmt.Errorf("reconcile: both snapshots are required")
	}

	if opts.Filter != nil {
		source = source.Filtered(opts.Filter)
		target = target.Filtered(opts.Filter)
	}

	kinds, err := selectKinds(schema, opts.Kinds)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Unchanged: make(map[Kind]int, len(kinds))}

	// Creates and updates: parents before children
	deletes := make([][]Operation, len(kinds))
	for i, spec := range kinds {
		upserts, kindDeletes, unchanged := diffKind(spec, source, target)
		plan.Operations = append(plan.Operations, upserts...)
		plan.Unchanged[spec.Kind] = unchanged
		deletes[i] = kindDeletes
	}

	// Deletes: children before parents
	for i := len(kinds) - 1; i >= 0; i-- {
		plan.Operations = append(plan.Operations, deletes[i]...)
	}

	return plan, nil
}

// selectKinds returns the schema kinds restricted to only, sorted by rank.
func selectKinds(schema *Schema, only []Kind) ([]KindSpec, error) {
	all := schema.Kinds()
	if len(only) == 0 {
		return all, nil
	}

	wanted := make(map[Kind]struct{}, len(only))
	for _, k := range only {
		if _, ok := schema.Spec(k); !ok {
			return nil, fmt.Errorf("reconcile: unknown kind %q", k)
		}
		wanted[k] = struct{}{}
	}

	out := make([]KindSpec, 0, len(wanted))
	for _, spec := range all {
		if _, ok := wanted[spec.Kind]; ok {
			out = append(out, spec)
		}
	}
	return out, nil
}

// diffKind computes the operations for a single kind. Upserts are creates and updates merged
// in ascending identifier order; deletes are in ascending identifier order too.
func diffKind(spec KindSpec, source, target *Snapshot) (upserts, deletes []Operation, unchanged int) {
	for _, id := range source.IDs(spec.Kind) {
		src, _ := source.Get(spec.Kind, id)
		dst, exists := target.Get(spec.Kind, id)
		if !exists {
			upserts = append(upserts, Operation{
				Type:   OpCreate,
				Kind:   spec.Kind,
				ID:     id,
				Record: src.clone(),
			})
			continue
		}

		changes := CompareAttributes(spec, src, dst)
		if len(changes) == 0 {
			unchanged++
			continue
		}
		upserts = append(upserts, Operation{
			Type:    OpUpdate,
			Kind:    spec.Kind,
			ID:      id,
			Record:  dst.clone(),
			Changes: changes,
		})
	}

	for _, id := range target.IDs(spec.Kind) {
		if _, exists := source.Get(spec.Kind, id); exists {
			continue
		}
		dst, _ := target.Get(spec.Kind, id)
		deletes = append(deletes, Operation{
			Type:   OpDelete,
			Kind:   spec.Kind,
			ID:     id,
			Record: dst.clone(),
		})
	}

	return upserts, deletes, unchanged
}

// CompareAttributes returns the tracked attributes whose canonical values differ,
// sorted by field name. Old values come from target and new values from source.
func CompareAttributes(spec KindSpec, source, target Record) []FieldChange {
	var changes []FieldChange
	for _, field := range spec.Attributes {
		newVal := source.Attr(field)
		oldVal := target.Attr(field)
		if newVal == oldVal {
			continue
		}
		changes = append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})
	return changes
}

// Describe renders an operation as a one-line summary for logs.
func (op Operation) Describe() string {
	switch op.Type {
	case OpUpdate:
		parts := make([]string, 0, len(op.Changes))
		for _, c := range op.Changes {
			parts = append(parts, fmt.Sprintf("%s: '%s' -> '%s'", c.Field, c.Old, c.New))
		}
		return fmt.Sprintf("update %s %s (%s)", op.Kind, op.ID, strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%s %s %s", op.Type, op.Kind, op.ID)
	}
}
