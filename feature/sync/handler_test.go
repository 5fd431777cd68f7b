package sync_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"infoblox-sync/core/reconcile"
	"infoblox-sync/core/storage/mocks"
	"infoblox-sync/feature/ipam"
	"infoblox-sync/feature/sync"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupApp(t *testing.T, appliance, inventory reconcile.Adapter, store *mocks.Client) *fiber.App {
	t.Helper()
	app := fiber.New()
	var feature *sync.Feature
	if store != nil {
		feature = sync.NewFeature(appliance, inventory, store, "bucket", sync.Config{}, zap.NewNop())
	} else {
		feature = sync.NewFeature(appliance, inventory, nil, "", sync.Config{}, zap.NewNop())
	}
	require.True(t, feature.IsEnabled())
	require.NoError(t, feature.Load(app))
	return app
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandler_Run(t *testing.T) {
	inventory := inventorySide()
	app := setupApp(t, applianceSide(), inventory, nil)

	req := httptest.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString(`{"networks": ["10.1.0.0/16"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result sync.Result
	decode(t, resp, &result)
	assert.Equal(t, "inventory", result.Report.Target)
	assert.Equal(t, 1, result.Report.Counts[ipam.KindNetwork].Created)
	assert.True(t, inventory.has(ipam.KindNetwork, "10.1.0.0/24"))
}

func TestHandler_RunWithoutBody(t *testing.T) {
	app := setupApp(t, applianceSide(), inventorySide(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sync", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_RunErrors(t *testing.T) {
	t.Run("Invalid Direction", func(t *testing.T) {
		app := setupApp(t, applianceSide(), inventorySide(), nil)

		req := httptest.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString(`{"direction": "sideways"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		app := setupApp(t, applianceSide(), inventorySide(), nil)

		req := httptest.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString(`{`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unreachable Side", func(t *testing.T) {
		appliance := applianceSide()
		appliance.loadErr = errors.New("dial tcp: connection refused")
		app := setupApp(t, appliance, inventorySide(), nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sync", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body map[string]string
		decode(t, resp, &body)
		assert.Contains(t, body["error"], "infoblox")
	})
}

func TestHandler_Plan(t *testing.T) {
	inventory := inventorySide()
	app := setupApp(t, applianceSide(), inventory, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sync/plan?direction=infoblox-to-inventory&networks=10.0.0.0/8,%20172.16.0.0/12", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var plan reconcile.Plan
	decode(t, resp, &plan)
	assert.Equal(t, 4, len(plan.Operations))
	assert.True(t, inventory.has(ipam.KindNetwork, "172.16.0.0/24"), "Planning does not write")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/sync/plan?networks=bogus", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Reports(t *testing.T) {
	store := new(mocks.Client)
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Key: "reports/sync/20260101T000000Z-aaaa.json"}
	close(ch)
	store.On("ListObjects", mock.Anything, "bucket", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))
	store.On("GetObject", mock.Anything, "bucket", "reports/sync/20260101T000000Z-aaaa.json", mock.Anything).
		Return(io.NopCloser(bytes.NewBufferString(`{"source":"infoblox","target":"inventory"}`)), nil)

	app := setupApp(t, applianceSide(), inventorySide(), store)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sync/reports", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var list map[string][]string
	decode(t, resp, &list)
	assert.Equal(t, []string{"reports/sync/20260101T000000Z-aaaa.json"}, list["reports"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/sync/reports/reports/sync/20260101T000000Z-aaaa.json", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var report reconcile.Report
	decode(t, resp, &report)
	assert.Equal(t, "infoblox", report.Source)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/sync/reports/elsewhere/x.json", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	store.On("RemoveObject", mock.Anything, "bucket", "reports/sync/20260101T000000Z-aaaa.json", mock.Anything).Return(nil)
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/sync/reports/reports/sync/20260101T000000Z-aaaa.json", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", sync.HandleHealth)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
