package loader_test

import (
	"errors"
	"testing"

	"infoblox-sync/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

type stubFeature struct {
	name    string
	enabled bool
	err     error
	loaded  bool
}

func (s *stubFeature) Name() string    { return s.name }
func (s *stubFeature) IsEnabled() bool { return s.enabled }
func (s *stubFeature) Load(app fiber.Router) error {
	s.loaded = true
	return s.err
}

func TestManager_LoadAll(t *testing.T) {
	enabled := &stubFeature{name: "sync", enabled: true}
	disabled := &stubFeature{name: "lookup"}

	mgr := loader.NewManager()
	mgr.Register(enabled)
	mgr.Register(disabled)

	assert.NoError(t, mgr.LoadAll(fiber.New()))
	assert.True(t, enabled.loaded)
	assert.False(t, disabled.loaded)
	assert.Len(t, mgr.Features(), 2)
}

func TestManager_LoadAllError(t *testing.T) {
	mgr := loader.NewManager()
	mgr.Register(&stubFeature{name: "broken", enabled: true, err: errors.New("boom")})

	err := mgr.LoadAll(fiber.New())
	assert.ErrorContains(t, err, "broken")
}
