package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// LoadSnapshots loads the source and target snapshots concurrently and waits for both.
// Any load failure is returned as a *FetchError and no snapshot is returned.
func LoadSnapshots(ctx context.Context, spec *Spec) (source, target *Snapshot, err error) {
	if err := spec.validate(); err != nil {
		return nil, nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Build source snapshot
	g.Go(func() error {
		snap, err := spec.Source.Load(gctx)
		if err != nil {
			return &FetchError{Adapter: spec.Source.Name(), Err: err}
		}
		if snap == nil {
			return &FetchError{Adapter: spec.Source.Name(), Err: fmt.Errorf("adapter returned no snapshot")}
		}
		source = snap
		return nil
	})

	// Build target snapshot
	g.Go(func() error {
		snap, err := spec.Target.Load(gctx)
		if err != nil {
			return &FetchError{Adapter: spec.Target.Name(), Err: err}
		}
		if snap == nil {
			return &FetchError{Adapter: spec.Target.Name(), Err: fmt.Errorf("adapter returned no snapshot")}
		}
		target = snap
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return source, target, nil
}

// ReconcileWithPlan loads both sides and returns the plan. It does NOT execute operations;
// use ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec, opts Options) (*Plan, error) {
	source, target, err := LoadSnapshots(ctx, spec)
	if err != nil {
		return nil, err
	}
	return Diff(spec.Schema, source, target, opts)
}

// ApplyPlan executes a plan against the spec's target and returns the run report.
// With opts.DryRun set nothing is executed and the report only carries planned and
// unchanged counts.
func ApplyPlan(ctx context.Context, spec *Spec, plan *Plan, opts Options) (*Report, error) {
	if opts.DryRun {
		report := &Report{
			Source:     spec.Source.Name(),
			Target:     spec.Target.Name(),
			DryRun:     true,
			Planned:    len(plan.Operations),
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		}
		for kind, n := range plan.Unchanged {
			report.CountsFor(kind).Unchanged = n
		}
		return report, nil
	}

	report, err := Apply(ctx, spec.Target, plan, opts)
	report.Source = spec.Source.Name()
	return report, err
}

// ReconcileAndApply performs one full load-diff-apply cycle.
//
// A load failure returns only the *FetchError. Operation failures never fail the run; they
// are listed in the report. A context ending during execution returns the partial report
// together with an error wrapping ErrAborted.
func ReconcileAndApply(ctx context.Context, spec *Spec, opts Options) (*Plan, *Report, error) {
	plan, err := ReconcileWithPlan(ctx, spec, opts)
	if err != nil {
		return nil, nil, err
	}

	report, err := ApplyPlan(ctx, spec, plan, opts)
	return plan, report, err
}

// Run performs one reconciliation run and returns only its report.
func Run(ctx context.Context, spec *Spec, opts Options) (*Report, error) {
	_, report, err := ReconcileAndApply(ctx, spec, opts)
	return report, err
}

func (s *Spec) validate() error {
	if s == nil {
		return fmt.Errorf("reconcile: spec is required")
	}
	if s.Schema == nil {
		return fmt.Errorf("reconcile: schema is required")
	}
	if s.Source == nil || s.Target == nil {
		return fmt.Errorf("reconcile: source and target adapters are required")
	}
	return nil
}
