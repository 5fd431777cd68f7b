package sync

import (
	"infoblox-sync/core/reconcile"
	"infoblox-sync/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new sync feature.
func NewFeature(infoblox, inventory reconcile.Adapter, store storage.Client, bucket string, cfg Config, logger *zap.Logger) *Feature {
	return NewFeatureFromService(NewService(infoblox, inventory, store, bucket, cfg, logger))
}

// NewFeatureFromService wraps an existing service.
func NewFeatureFromService(svc *Service) *Feature {
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "sync"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.service.infoblox != nil && f.service.inventory != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Service returns the feature's service.
func (f *Feature) Service() *Service {
	return f.service
}
