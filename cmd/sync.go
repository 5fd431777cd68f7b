package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"infoblox-sync/core/reconcile"
	"infoblox-sync/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags shared by sync and diff
	syncDirection string
	syncNetworks  []string
	syncWorkers   int
	syncFormat    string
	syncDryRun    bool
	yesConfirm    bool
)

// syncCmd plans and applies a synchronization run.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize networks and addresses between Infoblox and the inventory",
	Long: `Loads both sides, prints the plan, and applies it to the target after confirmation.

Examples:
  # Infoblox is the source of truth (default), interactive confirmation
  sync

  # Only networks inside 10.0.0.0/8, four workers, no prompt
  sync --network 10.0.0.0/8 --workers 4 --yes

  # Push the inventory into Infoblox, print the plan as YAML only
  sync --direction inventory-to-infoblox --dry-run --format yaml`,
	RunE: runSync,
}

// diffCmd prints the plan without applying it.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the operations a sync would perform",
	RunE: func(cmd *cobra.Command, args []string) error {
		syncDryRun = true
		return runSync(cmd, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, diffCmd} {
		c.Flags().StringVar(&syncDirection, "direction", "", "Source of truth (infoblox-to-inventory, inventory-to-infoblox)")
		c.Flags().StringArrayVar(&syncNetworks, "network", nil, "Restrict to networks inside this CIDR (repeatable)")
		c.Flags().IntVar(&syncWorkers, "workers", 0, "Concurrent operations per phase (default from config)")
		c.Flags().StringVar(&syncFormat, "format", sync.FormatJSON, "Output format (json, yaml)")
		RootCmd.AddCommand(c)
	}
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Print the plan without applying it")
	syncCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm changes (non-interactive)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}

	req := sync.Request{
		Direction: sync.Direction(syncDirection),
		Networks:  syncNetworks,
		Workers:   syncWorkers,
		DryRun:    syncDryRun,
	}

	a.logger.Info("Planning sync...", zap.String("direction", syncDirection), zap.Strings("networks", syncNetworks))
	plan, err := svc.Plan(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to plan sync: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := sync.Render(out, syncFormat, plan); err != nil {
		return err
	}

	if plan.Empty() {
		a.logger.Info("Both sides are in sync. No changes required.")
		return nil
	}
	if syncDryRun {
		a.logger.Info("Dry-run mode: No changes were made.", zap.Int("planned", len(plan.Operations)))
		return nil
	}

	if !confirmDestructiveAction(cmd.InOrStdin(), out, yesConfirm) {
		a.logger.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	a.logger.Info("Applying plan...", zap.Int("operations", len(plan.Operations)))
	result, err := svc.Apply(ctx, req, plan)
	if result != nil {
		if rerr := sync.Render(out, syncFormat, result.Report); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		if errors.Is(err, reconcile.ErrAborted) {
			return fmt.Errorf("sync interrupted, report shows the attempted operations: %w", err)
		}
		return fmt.Errorf("failed to apply plan: %w", err)
	}

	if failed := result.Report.Totals().Failed; failed > 0 {
		return fmt.Errorf("%d operations failed", failed)
	}
	return nil
}
