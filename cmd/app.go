package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"infoblox-sync/core/config"
	"infoblox-sync/core/database"
	"infoblox-sync/core/logger"
	"infoblox-sync/core/storage"
	"infoblox-sync/feature/infoblox"
	"infoblox-sync/feature/inventory"
	"infoblox-sync/feature/sync"

	"go.uber.org/zap"
)

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// loadApp loads configuration and builds the logger.
func loadApp() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &app{cfg: cfg, logger: l}, nil
}

// infobloxClient connects the WAPI client.
func (a *app) infobloxClient() (*infoblox.Client, error) {
	client, err := infoblox.NewClient(a.cfg.Infoblox, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create infoblox client: %w", err)
	}
	return client, nil
}

// syncService connects both sides and the optional report storage.
func (a *app) syncService(ctx context.Context) (*sync.Service, error) {
	client, err := a.infobloxClient()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	inv := inventory.NewAdapter(db, a.logger)
	if err := inv.Prepare(ctx); err != nil {
		return nil, err
	}

	return sync.NewService(infoblox.NewAdapter(client, a.logger), inv,
		a.reportStore(), a.cfg.Storage.Bucket, a.cfg.Sync, a.logger), nil
}

// reportStore returns the archive storage, or nil when archiving is off or unavailable.
func (a *app) reportStore() storage.Client {
	if !a.cfg.Sync.ArchiveReports {
		return nil
	}
	store, err := storage.NewClient(a.cfg.Storage)
	if err != nil {
		a.logger.Warn("Report storage unavailable, reports will not be archived", zap.Error(err))
		return nil
	}
	return store
}

// confirmDestructiveAction prompts the user for confirmation unless yes is set.
func confirmDestructiveAction(in io.Reader, out io.Writer, yes bool) bool {
	if yes {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to apply these changes: ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
