package reconcile

import (
	"fmt"
	"sort"
)

// Schema is the set of kinds a reconciliation understands.
type Schema struct {
	specs map[Kind]KindSpec
}

// NewSchema builds a schema from kind specs. Later specs with the same kind replace earlier ones.
func NewSchema(specs ...KindSpec) *Schema {
	s := &Schema{specs: make(map[Kind]KindSpec, len(specs))}
	for _, spec := range specs {
		s.specs[spec.Kind] = spec
	}
	return s
}

// Spec returns the spec for a kind.
func (s *Schema) Spec(kind Kind) (KindSpec, bool) {
	spec, ok := s.specs[kind]
	return spec, ok
}

// Kinds returns all kinds sorted by ascending rank, then name.
func (s *Schema) Kinds() []KindSpec {
	out := make([]KindSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Snapshot maps (kind, identifier) to a record for one side at one instant.
type Snapshot struct {
	// Source names the adapter that built the snapshot.
	Source string

	records map[Kind]map[string]Record
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(source string) *Snapshot {
	return &Snapshot{
		Source:  source,
		records: make(map[Kind]map[string]Record),
	}
}

// Add stores a record. Adding an identifier that is already present fails with ErrDuplicateRecord.
func (s *Snapshot) Add(rec Record) error {
	id := rec.Identifier()
	if id == "" {
		return fmt.Errorf("%s record has an empty identifier", rec.Kind)
	}

	byID, ok := s.records[rec.Kind]
	if !ok {
		byID = make(map[string]Record)
		s.records[rec.Kind] = byID
	}
	if _, exists := byID[id]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRecord, rec.Kind, id)
	}
	byID[id] = rec.clone()
	return nil
}

// Get returns the record with the given kind and identifier.
func (s *Snapshot) Get(kind Kind, id string) (Record, bool) {
	rec, ok := s.records[kind][id]
	return rec, ok
}

// IDs returns the identifiers of a kind in ascending order.
func (s *Snapshot) IDs(kind Kind) []string {
	byID := s.records[kind]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of records of a kind.
func (s *Snapshot) Len(kind Kind) int {
	return len(s.records[kind])
}

// Total returns the number of records across all kinds.
func (s *Snapshot) Total() int {
	n := 0
	for _, byID := range s.records {
		n += len(byID)
	}
	return n
}

// Filtered returns a copy containing only the records accepted by keep.
func (s *Snapshot) Filtered(keep Filter) *Snapshot {
	out := NewSnapshot(s.Source)
	for kind, byID := range s.records {
		for id, rec := range byID {
			if keep != nil && !keep(rec) {
				continue
			}
			if out.records[kind] == nil {
				out.records[kind] = make(map[string]Record)
			}
			out.records[kind][id] = rec
		}
	}
	return out
}
