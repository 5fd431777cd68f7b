package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"infoblox-sync/core/reconcile"
	"infoblox-sync/core/storage"
	"infoblox-sync/feature/ipam"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidRequest is returned for requests with an unknown direction or malformed networks.
var ErrInvalidRequest = errors.New("invalid sync request")

// Request describes one synchronization run.
type Request struct {
	// Direction picks the source of truth. Empty uses the configured default.
	Direction Direction `json:"direction"`
	// Networks restricts the run to networks contained in these CIDRs.
	Networks []string `json:"networks"`
	// DryRun computes the plan without applying it.
	DryRun bool `json:"dry_run"`
	// Workers overrides the configured worker count when positive.
	Workers int `json:"workers"`
}

// key identifies identical requests for deduplication.
func (r Request) key() string {
	networks := append([]string(nil), r.Networks...)
	sort.Strings(networks)
	return strings.Join([]string{
		string(r.Direction),
		strings.Join(networks, ","),
		strconv.FormatBool(r.DryRun),
		strconv.Itoa(r.Workers),
	}, "|")
}

// Result is the outcome of a run.
type Result struct {
	Plan   *reconcile.Plan   `json:"plan" yaml:"plan"`
	Report *reconcile.Report `json:"report" yaml:"report"`
	// ArchiveKey is the object key of the archived report, if any.
	ArchiveKey string `json:"archive_key,omitempty" yaml:"archive_key,omitempty"`
}

// Service runs reconciliations between Infoblox and the inventory.
type Service struct {
	infoblox  reconcile.Adapter
	inventory reconcile.Adapter
	store     storage.Client
	bucket    string
	cfg       Config
	logger    *zap.Logger

	// runs collapses concurrent identical requests into one run
	runs singleflight.Group
}

// NewService creates a new sync service. store may be nil when reports are not archived.
func NewService(infoblox, inventory reconcile.Adapter, store storage.Client, bucket string, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		infoblox:  infoblox,
		inventory: inventory,
		store:     store,
		bucket:    bucket,
		cfg:       cfg,
		logger:    logger,
	}
}

// normalize fills defaults and validates a request.
func (s *Service) normalize(req Request) (Request, reconcile.Options, error) {
	fallback, err := ParseDirection(s.cfg.Direction, InfobloxToInventory)
	if err != nil {
		return req, reconcile.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	direction, err := ParseDirection(string(req.Direction), fallback)
	if err != nil {
		return req, reconcile.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Direction = direction

	if req.Workers <= 0 {
		req.Workers = s.cfg.Workers
	}

	filter, err := ipam.NetworkFilter(req.Networks)
	if err != nil {
		return req, reconcile.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return req, reconcile.Options{
		DryRun:  req.DryRun,
		Workers: req.Workers,
		Filter:  filter,
	}, nil
}

// spec picks source and target adapters for a direction.
func (s *Service) spec(direction Direction) *reconcile.Spec {
	spec := &reconcile.Spec{Schema: ipam.Schema(), Source: s.infoblox, Target: s.inventory}
	if direction == InventoryToInfoblox {
		spec.Source, spec.Target = s.inventory, s.infoblox
	}
	return spec
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.TimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

// Plan loads both sides and returns the plan without applying it.
func (s *Service) Plan(ctx context.Context, req Request) (*reconcile.Plan, error) {
	req, opts, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	plan, err := reconcile.ReconcileWithPlan(ctx, s.spec(req.Direction), opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sync plan computed",
		zap.String("direction", string(req.Direction)),
		zap.Int("creates", plan.Count(reconcile.OpCreate)),
		zap.Int("updates", plan.Count(reconcile.OpUpdate)),
		zap.Int("deletes", plan.Count(reconcile.OpDelete)))
	return plan, nil
}

// Apply executes a previously computed plan. It does not reload either side.
func (s *Service) Apply(ctx context.Context, req Request, plan *reconcile.Plan) (*Result, error) {
	req, opts, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	report, err := reconcile.ApplyPlan(ctx, s.spec(req.Direction), plan, opts)
	return s.finish(ctx, req, plan, report, err)
}

// Run performs one full run. Concurrent identical requests share a single run; each new
// run loads fresh snapshots. The shared run is detached from the caller that started it and
// bounded by the configured timeout only; a caller whose context ends stops waiting
// without aborting the run for the others.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	req, opts, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	ch := s.runs.DoChan(req.key(), func() (interface{}, error) {
		runCtx, cancel := s.withTimeout(context.WithoutCancel(ctx))
		defer cancel()

		plan, report, err := reconcile.ReconcileAndApply(runCtx, s.spec(req.Direction), opts)
		if plan == nil {
			return nil, err
		}
		return s.finish(runCtx, req, plan, report, err)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Shared {
		s.logger.Debug("Joined in-flight sync run", zap.String("direction", string(req.Direction)))
	}

	// Aborted runs still carry their partial report
	result, _ := res.Val.(*Result)
	return result, res.Err
}

// finish logs and archives a report.
func (s *Service) finish(ctx context.Context, req Request, plan *reconcile.Plan, report *reconcile.Report, runErr error) (*Result, error) {
	result := &Result{Plan: plan, Report: report}
	if report == nil {
		return nil, runErr
	}

	s.logReport(req, report)

	if !report.DryRun && s.cfg.ArchiveReports && s.store != nil {
		// The archive must not race the run deadline
		key, err := s.archive(context.WithoutCancel(ctx), report)
		if err != nil {
			s.logger.Warn("Failed to archive sync report", zap.Error(err))
		} else {
			result.ArchiveKey = key
		}
	}

	return result, runErr
}

func (s *Service) logReport(req Request, report *reconcile.Report) {
	totals := report.Totals()
	fields := []zap.Field{
		zap.String("direction", string(req.Direction)),
		zap.String("source", report.Source),
		zap.String("target", report.Target),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("planned", report.Planned),
		zap.Int("created", totals.Created),
		zap.Int("updated", totals.Updated),
		zap.Int("deleted", totals.Deleted),
		zap.Int("unchanged", totals.Unchanged),
		zap.Int("failed", totals.Failed),
		zap.Bool("aborted", report.Aborted),
	}

	if totals.Failed > 0 || report.Aborted {
		s.logger.Warn("Sync run finished with failures", fields...)
		for _, f := range report.Failures {
			s.logger.Warn("Operation failed",
				zap.String("op", string(f.Type)),
				zap.String("kind", string(f.Kind)),
				zap.String("id", f.ID),
				zap.String("reason", f.Reason),
				zap.String("error", f.Message))
		}
		return
	}
	s.logger.Info("Sync run finished", fields...)
}

// archive stores the report as JSON and returns its object key.
func (s *Service) archive(ctx context.Context, report *reconcile.Report) (string, error) {
	if err := storage.EnsureBucket(ctx, s.store, s.bucket, ""); err != nil {
		return "", err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s.json",
		strings.TrimRight(s.reportPrefix(), "/"),
		report.StartedAt.UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8])

	_, err = s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	if s.cfg.ReportRetention > 0 {
		if err := s.prune(ctx); err != nil {
			s.logger.Warn("Failed to prune archived reports", zap.Error(err))
		}
	}
	return key, nil
}

// prune removes archived reports beyond the retention count, oldest first.
func (s *Service) prune(ctx context.Context) error {
	keys, err := s.ListReports(ctx)
	if err != nil {
		return err
	}
	if len(keys) <= s.cfg.ReportRetention {
		return nil
	}
	stale := keys[s.cfg.ReportRetention:]
	s.logger.Debug("Pruning archived reports", zap.Int("count", len(stale)))
	return storage.RemoveKeys(ctx, s.store, s.bucket, stale)
}

func (s *Service) reportPrefix() string {
	if s.cfg.ReportPrefix == "" {
		return "reports/sync"
	}
	return s.cfg.ReportPrefix
}

// ListReports returns the keys of archived reports, newest first.
func (s *Service) ListReports(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report storage not configured")
	}

	var keys []string
	for obj := range s.store.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimRight(s.reportPrefix(), "/") + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	// Keys start with the run timestamp
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

// GetReport reads an archived report.
func (s *Service) GetReport(ctx context.Context, key string) (*reconcile.Report, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report storage not configured")
	}
	if !strings.HasPrefix(key, strings.TrimRight(s.reportPrefix(), "/")+"/") {
		return nil, fmt.Errorf("report %s: %w", key, reconcile.ErrNotFound)
	}

	obj, err := s.store.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	defer obj.Close()

	var report reconcile.Report
	if err := json.NewDecoder(obj).Decode(&report); err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("report %s: %w", key, reconcile.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

// DeleteReport removes an archived report.
func (s *Service) DeleteReport(ctx context.Context, key string) error {
	if s.store == nil {
		return fmt.Errorf("report storage not configured")
	}
	if !strings.HasPrefix(key, strings.TrimRight(s.reportPrefix(), "/")+"/") {
		return fmt.Errorf("report %s: %w", key, reconcile.ErrNotFound)
	}
	if err := s.store.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
