package health

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	healthsvc "asset-ledger/internal/application/health"
	"asset-ledger/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHealthHandlers(t *testing.T) (*Handlers, *miniredis.Miniredis, *fiber.App) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	h := &Handlers{
		Checker:        &healthsvc.Checker{Rdb: rdb},
		HealthAdminKey: "test-admin-key",
	}
	app := fiber.New()
	app.Use(middleware.HealthMarker(rdb))
	app.Get("/health/json", h.JSON)
	app.Get("/health/errors", h.Errors)
	app.Get("/health/reset", h.Reset)
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "upstream")
	})
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return h, mr, app
}

func decode(t *testing.T, body io.Reader, v interface{}) {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestReset_Unauthorized(t *testing.T) {
	_, _, app := setupHealthHandlers(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	var out map[string]interface{}
	decode(t, resp.Body, &out)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Unauthorized", out["error"].(map[string]interface{})["message"])

	resp, err = app.Test(httptest.NewRequest("GET", "/health/reset?key=wrong", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestReset_Success(t *testing.T) {
	_, mr, app := setupHealthHandlers(t)
	require.NoError(t, mr.Set(middleware.KeyReqTotal, "5"))

	resp, err := app.Test(httptest.NewRequest("GET", "/health/reset?key=test-admin-key", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, mr.Exists(middleware.KeyReqTotal))
	assert.True(t, mr.Exists(middleware.KeyStartTime))
}

func TestJSON_CountsTrafficAndErrors(t *testing.T) {
	_, _, app := setupHealthHandlers(t)

	for _, path := range []string{"/ok", "/ok", "/boom"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Service string `json:"service"`
		Status  string `json:"status"`
		Traffic struct {
			TotalRequests int    `json:"totalRequests"`
			FailedCount   int    `json:"failedCount"`
			SuccessRate   string `json:"successRate"`
		} `json:"traffic"`
		Dependencies map[string]struct {
			Status string `json:"status"`
		} `json:"dependencies"`
	}
	decode(t, resp.Body, &out)
	assert.Equal(t, "asset-ledger", out.Service)
	assert.Equal(t, "issue", out.Status)
	assert.Equal(t, 3, out.Traffic.TotalRequests)
	assert.Equal(t, 1, out.Traffic.FailedCount)
	assert.Equal(t, "66.7", out.Traffic.SuccessRate)
	assert.Equal(t, "connected", out.Dependencies["redis"].Status)

	resp, err = app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	var entries []map[string]interface{}
	decode(t, resp.Body, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "/boom", entries[0]["path"])
	assert.EqualValues(t, 502, entries[0]["status"])
}

func TestErrors_WithoutRedis(t *testing.T) {
	h := &Handlers{Checker: &healthsvc.Checker{}}
	app := fiber.New()
	app.Get("/health/errors", h.Errors)
	resp, err := app.Test(httptest.NewRequest("GET", "/health/errors", nil))
	require.NoError(t, err)
	var entries []interface{}
	decode(t, resp.Body, &entries)
	assert.Empty(t, entries)
}
