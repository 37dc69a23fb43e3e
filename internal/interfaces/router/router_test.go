package router

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"asset-ledger/bootstrap"
	"asset-ledger/internal/config"
	"asset-ledger/internal/infrastructure/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouterTest(t *testing.T) *fiber.App {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	cfg := &config.Config{
		Env:              "test",
		AllowedOrigin:    ".family.example",
		HealthAdminKey:   "k",
		DefaultPortfolio: "General",
		Timezone:         "UTC",
		MarketCloseHour:  16,
	}
	return New(bootstrap.Wire(cfg, db, rdb, nil))
}

func TestRoutes_SyncThenHoldings(t *testing.T) {
	app := setupRouterTest(t)

	req := httptest.NewRequest("POST", "/api/v1/sync", strings.NewReader(`{"rows":[
		{"date":"2024-01-02","owner":"Kim","account":"ISA","asset":"원화","type":"입금","amount":0,"quantity":1000,"currency":"₩"}
	]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, err = uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, err)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/holdings?priced=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		Data     []map[string]interface{} `json:"data"`
		Metadata map[string]interface{}   `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "1000", out.Metadata["total_home"])
	// No feed configured: the FX rate degrades to 1.
	assert.Equal(t, true, out.Metadata["fx_degraded"])
}

func TestRoutes_HistoryAssetsBeforePortfolioParam(t *testing.T) {
	app := setupRouterTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/history/assets?date=2024-01-02", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "Asset history fetched")
}

func TestRoutes_CORS(t *testing.T) {
	app := setupRouterTest(t)

	req := httptest.NewRequest("GET", "/api/v1/sync/runs", nil)
	req.Header.Set("Origin", "https://evil.test")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/v1/sync/runs", nil)
	req.Header.Set("Origin", "https://dash.family.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRoutes_UnknownRouteUsesErrorEnvelope(t *testing.T) {
	app := setupRouterTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "error", out["status"])
}

func TestRoutes_HealthJSON(t *testing.T) {
	app := setupRouterTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestRoutes_Reconcile(t *testing.T) {
	app := setupRouterTest(t)

	req := httptest.NewRequest("POST", "/api/v1/reconcile?owner=Kim", strings.NewReader(`{"rows":[
		{"date":"2024-01-02","owner":"Kim","account":"ISA","asset":"원화","type":"입금","amount":0,"quantity":1000,"currency":"₩"},
		{"date":"2024-01-03","owner":"Lee","account":"IRP","asset":"원화","type":"입금","amount":0,"quantity":500,"currency":"₩"}
	]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		Data struct {
			Sync struct {
				Inserted int `json:"inserted"`
			} `json:"sync"`
			Holdings struct {
				Positions []map[string]interface{} `json:"positions"`
			} `json:"holdings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 2, out.Data.Sync.Inserted)
	require.Len(t, out.Data.Holdings.Positions, 1)
	assert.Equal(t, "1000", out.Data.Holdings.Positions[0]["quantity"])
}
