package inventory

import (
	"context"
	"errors"
	"fmt"

	"infoblox-sync/core/database"
	"infoblox-sync/core/reconcile"
	"infoblox-sync/feature/inventory/models"
	"infoblox-sync/feature/ipam"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Name is the adapter name used in reports.
const Name = "inventory"

// Adapter implements reconcile.Adapter for the inventory database.
type Adapter struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAdapter creates a new inventory adapter.
func NewAdapter(db *gorm.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, logger: logger}
}

// Name returns the unique name of this adapter.
func (a *Adapter) Name() string {
	return Name
}

// Prepare creates or migrates the inventory tables.
func (a *Adapter) Prepare(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("inventory database not connected")
	}
	if err := a.db.WithContext(ctx).AutoMigrate(&models.Prefix{}, &models.IPAddress{}); err != nil {
		return fmt.Errorf("failed to migrate inventory tables: %w", err)
	}
	return nil
}

// Load reads every network and address into a snapshot.
func (a *Adapter) Load(ctx context.Context) (*reconcile.Snapshot, error) {
	if a.db == nil {
		return nil, fmt.Errorf("inventory database not connected")
	}

	// Verify schema before trusting the rows
	for _, table := range []string{models.PrefixTable, models.IPAddressTable} {
		if err := database.RequireColumns(a.db.WithContext(ctx), table, models.Columns[table]...); err != nil {
			return nil, err
		}
	}

	var prefixes []models.Prefix
	if err := a.db.WithContext(ctx).Order("prefix").Find(&prefixes).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", models.PrefixTable, err)
	}

	var addresses []models.IPAddress
	if err := a.db.WithContext(ctx).Order("prefix, address").Find(&addresses).Error; err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", models.IPAddressTable, err)
	}

	snap := reconcile.NewSnapshot(Name)
	for _, p := range prefixes {
		if err := snap.Add(ipam.NewNetwork(p.Prefix, p.ID)); err != nil {
			return nil, err
		}
	}
	for _, addr := range addresses {
		if err := snap.Add(ipam.NewIPAddress(addr.Address, addr.Prefix, addr.Status, addr.DNSName, addr.ID)); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("Loaded inventory snapshot",
		zap.Int("networks", len(prefixes)),
		zap.Int("addresses", len(addresses)))

	return snap, nil
}

// Create inserts a network or address row and returns its generated ID.
func (a *Adapter) Create(ctx context.Context, rec reconcile.Record) (string, error) {
	db := a.db.WithContext(ctx)
	id := uuid.NewString()

	switch rec.Kind {
	case ipam.KindNetwork:
		row := models.Prefix{ID: id, Prefix: ipam.NetworkOf(rec)}
		if err := db.Create(&row).Error; err != nil {
			return "", translate(rec, err)
		}

	case ipam.KindIPAddress:
		network := ipam.NetworkOf(rec)
		if err := ipam.ValidateAddress(rec.Keys[0], network); err != nil {
			return "", err
		}

		// Parent networks are created in an earlier phase
		var parent models.Prefix
		if err := db.Where("prefix = ?", network).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", fmt.Errorf("parent network %s: %w", network, reconcile.ErrNotFound)
			}
			return "", err
		}

		row := models.IPAddress{
			ID:      id,
			Address: rec.Keys[0],
			Prefix:  network,
			Status:  rec.Attr(ipam.FieldStatus),
			DNSName: rec.Attr(ipam.FieldDNSName),
		}
		if err := db.Create(&row).Error; err != nil {
			return "", translate(rec, err)
		}

	default:
		return "", fmt.Errorf("create %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}

	return id, nil
}

// Update writes only the changed address columns.
func (a *Adapter) Update(ctx context.Context, rec reconcile.Record, changes []reconcile.FieldChange) error {
	if rec.Kind != ipam.KindIPAddress {
		return fmt.Errorf("update %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}

	updates := make(map[string]interface{}, len(changes))
	for _, c := range changes {
		switch c.Field {
		case ipam.FieldStatus, ipam.FieldDNSName:
			updates[c.Field] = c.New
		default:
			return fmt.Errorf("update field %s: %w", c.Field, reconcile.ErrUnsupported)
		}
	}
	if len(updates) == 0 {
		return nil
	}

	result := a.db.WithContext(ctx).
		Model(&models.IPAddress{}).
		Where("address = ? AND prefix = ?", rec.Keys[0], ipam.NetworkOf(rec)).
		Updates(updates)
	if result.Error != nil {
		return translate(rec, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", rec.Kind, rec.Identifier(), reconcile.ErrNotFound)
	}
	return nil
}

// Delete removes a network or address row.
func (a *Adapter) Delete(ctx context.Context, rec reconcile.Record) error {
	db := a.db.WithContext(ctx)

	var result *gorm.DB
	switch rec.Kind {
	case ipam.KindNetwork:
		network := ipam.NetworkOf(rec)

		// Refuse to orphan addresses whose delete failed earlier
		var children int64
		if err := db.Model(&models.IPAddress{}).Where("prefix = ?", network).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return &reconcile.ConflictError{
				Kind: rec.Kind,
				ID:   rec.Identifier(),
				Err:  fmt.Errorf("network still owns %d addresses", children),
			}
		}
		result = db.Where("prefix = ?", network).Delete(&models.Prefix{})

	case ipam.KindIPAddress:
		result = db.Where("address = ? AND prefix = ?", rec.Keys[0], ipam.NetworkOf(rec)).Delete(&models.IPAddress{})

	default:
		return fmt.Errorf("delete %s: %w", rec.Kind, reconcile.ErrUnsupported)
	}

	if result.Error != nil {
		return translate(rec, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", rec.Kind, rec.Identifier(), reconcile.ErrNotFound)
	}
	return nil
}

// translate maps GORM errors onto the reconcile error vocabulary.
func translate(rec reconcile.Record, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &reconcile.ConflictError{Kind: rec.Kind, ID: rec.Identifier(), Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s %s: %w", rec.Kind, rec.Identifier(), reconcile.ErrNotFound)
	default:
		return err
	}
}
