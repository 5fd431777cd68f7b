package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	kindNetwork Kind = "network"
	kindAddress Kind = "ipaddress"
)

func testSchema() *Schema {
	return NewSchema(
		KindSpec{Kind: kindAddress, Rank: 1, Identifiers: []string{"address", "prefix"}, Attributes: []string{"status", "dns_name"}},
		KindSpec{Kind: kindNetwork, Rank: 0, Identifiers: []string{"network"}},
	)
}

func network(cidr string) Record {
	return Record{Kind: kindNetwork, Keys: []string{cidr}}
}

func address(addr, prefix string, attrs map[string]string) Record {
	return Record{Kind: kindAddress, Keys: []string{addr, prefix}, Attrs: attrs}
}

func snapshotOf(t *testing.T, name string, records ...Record) *Snapshot {
	t.Helper()
	snap := NewSnapshot(name)
	for _, rec := range records {
		require.NoError(t, snap.Add(rec))
	}
	return snap
}

// memoryAdapter is an in-memory adapter whose mutations change what the next Load returns.
type memoryAdapter struct {
	name    string
	mu      sync.Mutex
	records map[Kind]map[string]Record
	nextRef int

	loadErr error
	// fail decides whether an operation fails; called with the 1-based call number.
	fail  func(call int, op OpType, rec Record) error
	calls []string
	onOp  func(call int)
}

func newMemoryAdapter(name string, records ...Record) *memoryAdapter {
	m := &memoryAdapter{name: name, records: make(map[Kind]map[string]Record)}
	for _, rec := range records {
		m.put(rec)
	}
	return m
}

func (m *memoryAdapter) put(rec Record) {
	if m.records[rec.Kind] == nil {
		m.records[rec.Kind] = make(map[string]Record)
	}
	m.records[rec.Kind][rec.Identifier()] = rec.clone()
}

func (m *memoryAdapter) Name() string {
	return m.name
}

func (m *memoryAdapter) Load(ctx context.Context) (*Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := NewSnapshot(m.name)
	for _, byID := range m.records {
		for _, rec := range byID {
			if err := snap.Add(rec); err != nil {
				return nil, err
			}
		}
	}
	return snap, nil
}

func (m *memoryAdapter) begin(op OpType, rec Record) error {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("%s %s %s", op, rec.Kind, rec.Identifier()))
	call := len(m.calls)
	m.mu.Unlock()

	if m.onOp != nil {
		m.onOp(call)
	}
	if m.fail != nil {
		return m.fail(call, op, rec)
	}
	return nil
}

func (m *memoryAdapter) Create(ctx context.Context, rec Record) (string, error) {
	if err := m.begin(OpCreate, rec); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRef++
	rec.Ref = fmt.Sprintf("ref-%d", m.nextRef)
	m.put(rec)
	return rec.Ref, nil
}

func (m *memoryAdapter) Update(ctx context.Context, rec Record, changes []FieldChange) error {
	if err := m.begin(OpUpdate, rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.Kind][rec.Identifier()]
	if !ok {
		return ErrNotFound
	}
	if stored.Attrs == nil {
		stored.Attrs = make(map[string]string)
	}
	for _, c := range changes {
		stored.Attrs[c.Field] = c.New
	}
	m.records[rec.Kind][rec.Identifier()] = stored
	return nil
}

func (m *memoryAdapter) Delete(ctx context.Context, rec Record) error {
	if err := m.begin(OpDelete, rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Kind][rec.Identifier()]; !ok {
		return ErrNotFound
	}
	delete(m.records[rec.Kind], rec.Identifier())
	return nil
}

func opSummary(plan *Plan) []string {
	out := make([]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		out = append(out, fmt.Sprintf("%s %s %s", op.Type, op.Kind, op.ID))
	}
	return out
}

// TestDiff_SymmetryOfSets tests that A={n1,n2}, B={n2,n3} yields one create and one delete.
func TestDiff_SymmetryOfSets(t *testing.T) {
	source := snapshotOf(t, "a", network("10.0.1.0/24"), network("10.0.2.0/24"))
	target := snapshotOf(t, "b", network("10.0.2.0/24"), network("10.0.3.0/24"))

	plan, err := Diff(testSchema(), source, target, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create network 10.0.1.0/24",
		"delete network 10.0.3.0/24",
	}, opSummary(plan))
	assert.Equal(t, 0, plan.Count(OpUpdate))
	assert.Equal(t, 1, plan.Unchanged[kindNetwork])
}

// TestDiff_AbsenceNormalization tests that an empty value and a missing value are equal.
func TestDiff_AbsenceNormalization(t *testing.T) {
	source := snapshotOf(t, "a", address("10.0.0.5/24", "10.0.0.0/24", map[string]string{"dns_name": "", "status": "active"}))
	target := snapshotOf(t, "b", address("10.0.0.5/24", "10.0.0.0/24", map[string]string{"status": "active"}))

	plan, err := Diff(testSchema(), source, target, Options{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 1, plan.Unchanged[kindAddress])

	// Nil attribute maps too
	source = snapshotOf(t, "a", address("10.0.0.5/24", "10.0.0.0/24", nil))
	target = snapshotOf(t, "b", address("10.0.0.5/24", "10.0.0.0/24", map[string]string{"status": "", "dns_name": ""}))
	plan, err = Diff(testSchema(), source, target, Options{})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

// TestDiff_UpdateCarriesOnlyChangedFields tests minimal update payloads.
func TestDiff_UpdateCarriesOnlyChangedFields(t *testing.T) {
	source := snapshotOf(t, "a", address("10.0.0.5/24", "10.0.0.0/24", map[string]string{"status": "active", "dns_name": "new.example.com"}))
	target := snapshotOf(t, "b", Record{
		Kind:  kindAddress,
		Keys:  []string{"10.0.0.5/24", "10.0.0.0/24"},
		Attrs: map[string]string{"status": "active", "dns_name": "old.example.com"},
		Ref:   "record:host/abc",
	})

	plan, err := Diff(testSchema(), source, target, Options{})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	op := plan.Operations[0]
	assert.Equal(t, OpUpdate, op.Type)
	assert.Equal(t, "10.0.0.5/24__10.0.0.0/24", op.ID)
	assert.Equal(t, "record:host/abc", op.Record.Ref, "Update should address the target's record")
	assert.Equal(t, []FieldChange{{Field: "dns_name", Old: "old.example.com", New: "new.example.com"}}, op.Changes)
}

// TestDiff_OrderingInvariant tests networks-first creates and addresses-first deletes.
func TestDiff_OrderingInvariant(t *testing.T) {
	source := snapshotOf(t, "a",
		address("10.0.1.20/24", "10.0.1.0/24", nil),
		address("10.0.1.10/24", "10.0.1.0/24", nil),
		network("10.0.1.0/24"),
		network("10.0.0.0/24"),
	)
	target := snapshotOf(t, "b",
		network("10.9.0.0/24"),
		address("10.9.0.1/24", "10.9.0.0/24", nil),
	)

	plan, err := Diff(testSchema(), source, target, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create network 10.0.0.0/24",
		"create network 10.0.1.0/24",
		"create ipaddress 10.0.1.10/24__10.0.1.0/24",
		"create ipaddress 10.0.1.20/24__10.0.1.0/24",
		"delete ipaddress 10.9.0.1/24__10.9.0.0/24",
		"delete network 10.9.0.0/24",
	}, opSummary(plan))

	lastNetworkCreate, firstAddressCreate := -1, len(plan.Operations)
	lastAddressDelete, firstNetworkDelete := -1, len(plan.Operations)
	for i, op := range plan.Operations {
		switch {
		case op.Type == OpCreate && op.Kind == kindNetwork:
			lastNetworkCreate = i
		case op.Type == OpCreate && op.Kind == kindAddress && i < firstAddressCreate:
			firstAddressCreate = i
		case op.Type == OpDelete && op.Kind == kindAddress:
			lastAddressDelete = i
		case op.Type == OpDelete && op.Kind == kindNetwork && i < firstNetworkDelete:
			firstNetworkDelete = i
		}
	}
	assert.Less(t, lastNetworkCreate, firstAddressCreate)
	assert.Less(t, lastAddressDelete, firstNetworkDelete)
}

// TestDiff_OrderIndependent tests that insertion order never changes the plan.
func TestDiff_OrderIndependent(t *testing.T) {
	records := []Record{
		network("10.0.3.0/24"),
		network("10.0.1.0/24"),
		address("10.0.1.7/24", "10.0.1.0/24", map[string]string{"status": "active"}),
		address("10.0.1.3/24", "10.0.1.0/24", map[string]string{"status": "reserved"}),
		network("10.0.2.0/24"),
	}

	forward := snapshotOf(t, "a", records...)
	reversed := make([]Record, len(records))
	for i, rec := range records {
		reversed[len(records)-1-i] = rec
	}
	backward := snapshotOf(t, "a", reversed...)
	target := snapshotOf(t, "b", network("10.0.2.0/24"), network("10.0.4.0/24"))

	p1, err := Diff(testSchema(), forward, target, Options{})
	require.NoError(t, err)
	p2, err := Diff(testSchema(), backward, target, Options{})
	require.NoError(t, err)
	assert.Equal(t, opSummary(p1), opSummary(p2))
}

// TestDiff_FilterAndKinds tests restricting the compared entities.
func TestDiff_FilterAndKinds(t *testing.T) {
	source := snapshotOf(t, "a",
		network("10.0.1.0/24"),
		network("10.0.2.0/24"),
		address("10.0.1.5/24", "10.0.1.0/24", nil),
	)
	target := snapshotOf(t, "b", network("10.0.3.0/24"))

	onlyNet1 := func(rec Record) bool {
		if rec.Kind == kindNetwork {
			return rec.Keys[0] == "10.0.1.0/24"
		}
		return rec.Keys[1] == "10.0.1.0/24"
	}

	plan, err := Diff(testSchema(), source, target, Options{Filter: onlyNet1})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"create network 10.0.1.0/24",
		"create ipaddress 10.0.1.5/24__10.0.1.0/24",
	}, opSummary(plan), "Entities outside the filter must be left alone on both sides")

	plan, err = Diff(testSchema(), source, target, Options{Kinds: []Kind{kindNetwork}})
	require.NoError(t, err)
	assert.Equal(t, 0, len(plan.Operations)-plan.Count(OpCreate)-plan.Count(OpDelete))
	for _, op := range plan.Operations {
		assert.Equal(t, kindNetwork, op.Kind)
	}

	_, err = Diff(testSchema(), source, target, Options{Kinds: []Kind{"vlan"}})
	assert.Error(t, err)
}

// TestSnapshot_RejectsDuplicates tests the no-duplicate invariant.
func TestSnapshot_RejectsDuplicates(t *testing.T) {
	snap := NewSnapshot("a")
	require.NoError(t, snap.Add(network("10.0.0.0/24")))

	err := snap.Add(network("10.0.0.0/24"))
	assert.ErrorIs(t, err, ErrDuplicateRecord)

	err = snap.Add(Record{Kind: kindNetwork})
	assert.Error(t, err, "Empty identifiers are rejected")

	// Stored records are isolated from the caller's copy
	rec := address("10.0.0.1/24", "10.0.0.0/24", map[string]string{"status": "active"})
	require.NoError(t, snap.Add(rec))
	rec.Attrs["status"] = "changed"
	stored, ok := snap.Get(kindAddress, "10.0.0.1/24__10.0.0.0/24")
	require.True(t, ok)
	assert.Equal(t, "active", stored.Attr("status"))
}

// TestApply_FailureIsolation tests that every third failing operation does not block others.
func TestApply_FailureIsolation(t *testing.T) {
	var sourceRecords []Record
	for i := 0; i < 4; i++ {
		cidr := fmt.Sprintf("10.0.%d.0/24", i)
		sourceRecords = append(sourceRecords, network(cidr))
		sourceRecords = append(sourceRecords, address(fmt.Sprintf("10.0.%d.1/24", i), cidr, map[string]string{"status": "active"}))
	}
	source := newMemoryAdapter("source", sourceRecords...)
	target := newMemoryAdapter("target",
		network("10.1.0.0/24"),
		network("10.1.1.0/24"),
		address("10.0.0.1/24", "10.0.0.0/24", map[string]string{"status": "reserved"}),
	)
	target.fail = func(call int, op OpType, rec Record) error {
		if call%3 == 0 {
			return fmt.Errorf("synthetic failure on call %d", call)
		}
		return nil
	}

	spec := &Spec{Schema: testSchema(), Source: source, Target: target}
	plan, report, err := ReconcileAndApply(context.Background(), spec, Options{})
	require.NoError(t, err, "Operation failures never fail the run")

	totals := report.Totals()
	assert.Equal(t, len(plan.Operations), totals.Created+totals.Updated+totals.Deleted+totals.Failed)
	assert.Equal(t, len(plan.Operations)/3, totals.Failed)
	assert.Len(t, report.Failures, totals.Failed)
	assert.Len(t, report.Results, len(plan.Operations))

	failed := make(map[string]bool)
	for _, f := range report.Failures {
		failed[string(f.Type)+" "+f.ID] = true
		assert.Equal(t, ReasonFailed, f.Reason)
		assert.NotEmpty(t, f.Message)
	}
	for _, res := range report.Results {
		key := string(res.Type) + " " + res.ID
		if failed[key] {
			assert.Equal(t, StatusFailed, res.Status)
		} else {
			assert.Equal(t, StatusSucceeded, res.Status)
		}
	}

	// Failures are listed in plan order
	order := make(map[string]int)
	for i, op := range plan.Operations {
		order[string(op.Type)+" "+op.ID] = i
	}
	assert.True(t, sort.SliceIsSorted(report.Failures, func(i, j int) bool {
		return order[string(report.Failures[i].Type)+" "+report.Failures[i].ID] < order[string(report.Failures[j].Type)+" "+report.Failures[j].ID]
	}))
}

// TestApply_DeleteNotFoundIsSuccess tests delete idempotence.
func TestApply_DeleteNotFoundIsSuccess(t *testing.T) {
	target := newMemoryAdapter("target")
	plan := &Plan{Operations: []Operation{
		{Type: OpDelete, Kind: kindNetwork, ID: "10.0.0.0/24", Record: network("10.0.0.0/24")},
	}}

	report, err := Apply(context.Background(), target, plan, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.CountsFor(kindNetwork).Deleted)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].AlreadyAbsent)
}

// TestApply_WritesBackAssignedRef tests that created records receive the target's identifier.
func TestApply_WritesBackAssignedRef(t *testing.T) {
	target := newMemoryAdapter("target")
	plan := &Plan{Operations: []Operation{
		{Type: OpCreate, Kind: kindNetwork, ID: "10.0.0.0/24", Record: network("10.0.0.0/24")},
	}}

	report, err := Apply(context.Background(), target, plan, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ref-1", plan.Operations[0].Record.Ref)
	assert.Equal(t, "ref-1", report.Results[0].Ref)
}

// TestApply_ReasonCodes tests classification of adapter errors.
func TestApply_ReasonCodes(t *testing.T) {
	target := newMemoryAdapter("target")
	target.fail = func(call int, op OpType, rec Record) error {
		switch op {
		case OpCreate:
			return &ConflictError{Kind: rec.Kind, ID: rec.Identifier()}
		case OpUpdate:
			return fmt.Errorf("status is read-only: %w", ErrUnsupported)
		}
		return nil
	}
	plan := &Plan{Operations: []Operation{
		{Type: OpCreate, Kind: kindAddress, ID: "a", Record: address("10.0.0.1/24", "10.0.0.0/24", nil)},
		{Type: OpUpdate, Kind: kindAddress, ID: "b", Record: address("10.0.0.2/24", "10.0.0.0/24", nil)},
	}}

	report, err := Apply(context.Background(), target, plan, Options{})
	require.NoError(t, err)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, ReasonConflict, report.Failures[0].Reason)
	assert.Equal(t, ReasonUnsupported, report.Failures[1].Reason)
	assert.Equal(t, 2, report.CountsFor(kindAddress).Failed)
}

// TestApply_AbortReportsOnlyAttempted tests that a cancelled run reports exactly what ran.
func TestApply_AbortReportsOnlyAttempted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := newMemoryAdapter("target")
	target.onOp = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	var ops []Operation
	for i := 0; i < 5; i++ {
		cidr := fmt.Sprintf("10.0.%d.0/24", i)
		ops = append(ops, Operation{Type: OpCreate, Kind: kindNetwork, ID: cidr, Record: network(cidr)})
	}
	plan := &Plan{Operations: ops}

	report, err := Apply(ctx, target, plan, Options{Workers: 1})
	assert.ErrorIs(t, err, ErrAborted)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Len(t, report.Results, 2)
	assert.Len(t, target.calls, 2)
	assert.Equal(t, 5, report.Planned)
}

// TestApply_ConcurrentWorkersKeepKindOrder tests that phases act as barriers.
func TestApply_ConcurrentWorkersKeepKindOrder(t *testing.T) {
	var records []Record
	for i := 0; i < 20; i++ {
		cidr := fmt.Sprintf("10.%d.0.0/24", i)
		records = append(records, network(cidr), address(fmt.Sprintf("10.%d.0.1/24", i), cidr, nil))
	}
	source := newMemoryAdapter("source", records...)
	target := newMemoryAdapter("target", network("172.16.0.0/24"), address("172.16.0.1/24", "172.16.0.0/24", nil))

	spec := &Spec{Schema: testSchema(), Source: source, Target: target}
	_, report, err := ReconcileAndApply(context.Background(), spec, Options{Workers: 8})
	require.NoError(t, err)
	assert.Empty(t, report.Failures)

	phaseOf := func(call string) int {
		switch {
		case call[:len("create network")] == "create network":
			return 0
		case call[:len("create ipaddress")] == "create ipaddress":
			return 1
		case call[:len("delete ipaddress")] == "delete ipaddress":
			return 2
		default:
			return 3
		}
	}
	for i := 1; i < len(target.calls); i++ {
		assert.LessOrEqual(t, phaseOf(target.calls[i-1]), phaseOf(target.calls[i]), "call %d (%s) ran out of phase", i, target.calls[i])
	}
}

// TestReconcileAndApply_Idempotent tests that a second run finds nothing to do.
func TestReconcileAndApply_Idempotent(t *testing.T) {
	source := newMemoryAdapter("source",
		network("10.0.0.0/24"),
		address("10.0.0.1/24", "10.0.0.0/24", map[string]string{"status": "active", "dns_name": "a.example.com"}),
		address("10.0.0.2/24", "10.0.0.0/24", map[string]string{"status": "reserved"}),
	)
	target := newMemoryAdapter("target",
		network("10.5.0.0/24"),
		address("10.0.0.1/24", "10.0.0.0/24", map[string]string{"status": "active"}),
	)
	spec := &Spec{Schema: testSchema(), Source: source, Target: target}

	first, _, err := ReconcileAndApply(context.Background(), spec, Options{})
	require.NoError(t, err)
	assert.False(t, first.Empty())

	second, report, err := ReconcileAndApply(context.Background(), spec, Options{})
	require.NoError(t, err)
	assert.True(t, second.Empty(), "Second run should be a no-op: %v", opSummary(second))
	assert.Equal(t, 1, report.CountsFor(kindNetwork).Unchanged)
	assert.Equal(t, 2, report.CountsFor(kindAddress).Unchanged)
}

// TestReconcileAndApply_FetchErrorIsFatal tests that load failures return no report.
func TestReconcileAndApply_FetchErrorIsFatal(t *testing.T) {
	source := newMemoryAdapter("source", network("10.0.0.0/24"))
	target := newMemoryAdapter("target")
	target.loadErr = fmt.Errorf("connection refused")

	spec := &Spec{Schema: testSchema(), Source: source, Target: target}
	plan, report, err := ReconcileAndApply(context.Background(), spec, Options{})
	assert.Nil(t, plan)
	assert.Nil(t, report)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "target", fetchErr.Adapter)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, target.calls, "No operation may run against an incomplete snapshot")
}

// TestApplyPlan_DryRun tests that dry runs never touch the target.
func TestApplyPlan_DryRun(t *testing.T) {
	source := newMemoryAdapter("source", network("10.0.0.0/24"), network("10.0.1.0/24"))
	target := newMemoryAdapter("target", network("10.0.1.0/24"))
	spec := &Spec{Schema: testSchema(), Source: source, Target: target}

	plan, report, err := ReconcileAndApply(context.Background(), spec, Options{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, plan.Operations, 1)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Planned)
	assert.Equal(t, 1, report.CountsFor(kindNetwork).Unchanged)
	assert.Empty(t, target.calls)
}

// TestRun_ReturnsReport tests the report-only entry point.
func TestRun_ReturnsReport(t *testing.T) {
	source := newMemoryAdapter("source", network("10.0.0.0/24"))
	target := newMemoryAdapter("target", network("10.0.9.0/24"))

	report, err := Run(context.Background(), &Spec{Schema: testSchema(), Source: source, Target: target}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "source", report.Source)
	assert.Equal(t, "target", report.Target)
	assert.Equal(t, 1, report.CountsFor(kindNetwork).Created)
	assert.Equal(t, 1, report.CountsFor(kindNetwork).Deleted)

	_, err = Run(context.Background(), &Spec{Schema: testSchema(), Source: source}, Options{})
	assert.Error(t, err)
}
