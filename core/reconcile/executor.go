package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// phase is a contiguous run of plan operations sharing a kind and direction
// (upsert or delete). Phases execute strictly one after another.
type phase struct {
	start, end int
}

// splitPhases cuts the plan into phases at every kind or direction change.
func splitPhases(ops []Operation) []phase {
	var phases []phase
	for i := range ops {
		if i == 0 || ops[i].Kind != ops[i-1].Kind || isDelete(ops[i]) != isDelete(ops[i-1]) {
			phases = append(phases, phase{start: i, end: i + 1})
			continue
		}
		phases[len(phases)-1].end = i + 1
	}
	return phases
}

func isDelete(op Operation) bool {
	return op.Type == OpDelete
}

// outcome is the result slot for one plan operation.
type outcome struct {
	attempted bool
	ref       string
	absent    bool
	err       error
}

// Apply executes the operations of a plan against the target adapter, in plan order.
//
// Failures are isolated: a failed operation is recorded in the report and the remaining
// operations still run. Inside a phase up to opts.Workers operations run concurrently,
// dispatched in plan order. When ctx ends, no further operation is dispatched; the report
// then holds exactly the attempted operations, Aborted is set and the returned error wraps
// ErrAborted.
func Apply(ctx context.Context, target Adapter, plan *Plan, opts Options) (*Report, error) {
	report := &Report{
		Target:    target.Name(),
		Planned:   len(plan.Operations),
		StartedAt: time.Now(),
	}
	for kind, n := range plan.Unchanged {
		report.CountsFor(kind).Unchanged = n
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]outcome, len(plan.Operations))
	sem := make(chan struct{}, workers)

	var abortErr error
	for _, ph := range splitPhases(plan.Operations) {
		var wg sync.WaitGroup
		for i := ph.start; i < ph.end && abortErr == nil; i++ {
			// Never dispatch once the caller's deadline has passed
			if err := ctx.Err(); err != nil {
				abortErr = err
				break
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				abortErr = ctx.Err()
				continue
			}
			// The slot may free up in the same instant the context ends
			if err := ctx.Err(); err != nil {
				<-sem
				abortErr = err
				break
			}

			outcomes[i].attempted = true
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				outcomes[i] = execute(ctx, target, plan.Operations[i])
			}(i)
		}
		// Barrier between phases
		wg.Wait()

		if abortErr != nil {
			break
		}
	}

	for i := range plan.Operations {
		out := outcomes[i]
		if !out.attempted {
			continue
		}
		op := &plan.Operations[i]
		record(report, op, out)
	}

	report.FinishedAt = time.Now()
	if abortErr != nil {
		report.Aborted = true
		return report, fmt.Errorf("%w: %v", ErrAborted, abortErr)
	}
	return report, nil
}

// execute performs a single operation against the target.
func execute(ctx context.Context, target Adapter, op Operation) outcome {
	out := outcome{attempted: true}
	switch op.Type {
	case OpCreate:
		out.ref, out.err = target.Create(ctx, op.Record)
	case OpUpdate:
		out.err = target.Update(ctx, op.Record, op.Changes)
	case OpDelete:
		err := target.Delete(ctx, op.Record)
		// Absence is the desired end state
		if errors.Is(err, ErrNotFound) {
			out.absent = true
			err = nil
		}
		out.err = err
	default:
		out.err = fmt.Errorf("unknown operation type %q", op.Type)
	}
	return out
}

// record folds one outcome into the report and writes assigned references back onto the plan.
func record(report *Report, op *Operation, out outcome) {
	counts := report.CountsFor(op.Kind)
	result := OperationResult{Type: op.Type, Kind: op.Kind, ID: op.ID}

	if out.err != nil {
		opErr := newOpError(*op, out.err)
		counts.Failed++
		result.Status = StatusFailed
		result.Error = out.err.Error()
		report.Results = append(report.Results, result)
		report.Failures = append(report.Failures, Failure{
			Type:    op.Type,
			Kind:    op.Kind,
			ID:      op.ID,
			Reason:  opErr.Reason,
			Message: out.err.Error(),
		})
		return
	}

	result.Status = StatusSucceeded
	switch op.Type {
	case OpCreate:
		counts.Created++
		if out.ref != "" {
			op.Record.Ref = out.ref
			result.Ref = out.ref
		}
	case OpUpdate:
		counts.Updated++
	case OpDelete:
		counts.Deleted++
		result.AlreadyAbsent = out.absent
	}
	report.Results = append(report.Results, result)
}
