package history

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	historysvc "asset-ledger/internal/application/history"
	"asset-ledger/internal/domain"
	"asset-ledger/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHistoryTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	h := &Handlers{Service: &historysvc.Service{
		DB:               db,
		DefaultPortfolio: "General",
		Location:         time.UTC,
		MarketCloseHour:  16,
		Now:              func() time.Time { return time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC) },
	}}
	app := fiber.New()
	app.Put("/history", h.Import)
	app.Post("/history/record", h.Record)
	app.Get("/history/assets", h.Assets)
	app.Get("/history/:portfolio", h.Series)
	return app, db
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out envelope
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestImportThenSeries(t *testing.T) {
	app, _ := setupHistoryTest(t)

	code, _ := do(t, app, "PUT", "/history", `{"points":[
		{"date":"2024-01-01","portfolio_name":"Growth","eval_value":"1000000","invested_principal":"1000000"},
		{"date":"2024-01-02","portfolio_name":"Growth","eval_value":"1260000","invested_principal":"1200000"},
		{"date":"2024-01-03","portfolio_name":"Growth","eval_value":"1300000","invested_principal":"1200000"}
	]}`)
	require.Equal(t, fiber.StatusOK, code)

	code, out := do(t, app, "GET", "/history/Growth?from=2024-01-02", "")
	require.Equal(t, fiber.StatusOK, code)
	var points []domain.PortfolioHistoryPoint
	require.NoError(t, json.Unmarshal(out.Data, &points))
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-02", points[0].Date.String())
	assert.True(t, points[0].IndexVal.Equal(decimal.NewFromInt(105)))
	assert.True(t, points[1].IsFinal)

	code, _ = do(t, app, "GET", "/history/Growth?to=soon", "")
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestImport_RejectsPointWithoutPortfolio(t *testing.T) {
	app, _ := setupHistoryTest(t)
	code, out := do(t, app, "PUT", "/history", `{"points":[{"date":"2024-01-01"}]}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "error", out.Status)
}

func TestRecordThenAssets(t *testing.T) {
	app, db := setupHistoryTest(t)
	require.NoError(t, db.Create(&domain.Transaction{
		Date:        domain.MustDate("2024-03-01"),
		Owner:       "Kim",
		Account:     "ISA",
		Asset:       domain.CashHomeAsset,
		Type:        domain.TxDeposit,
		Quantity:    decimal.NewFromInt(5000),
		Currency:    domain.KRW,
		Status:      domain.StatusSettled,
		ContentHash: "h1",
	}).Error)

	code, out := do(t, app, "POST", "/history/record?date=2024-03-04", "")
	require.Equal(t, fiber.StatusCreated, code)
	var rec historysvc.Recorded
	require.NoError(t, json.Unmarshal(out.Data, &rec))
	assert.True(t, rec.IsFinal)
	require.Len(t, rec.Points, 1)
	assert.Equal(t, "General", rec.Points[0].PortfolioName)
	assert.True(t, rec.Points[0].IndexVal.Equal(decimal.NewFromInt(100)))

	code, out = do(t, app, "GET", "/history/assets?date=2024-03-04", "")
	require.Equal(t, fiber.StatusOK, code)
	var assets []domain.AssetHistoryPoint
	require.NoError(t, json.Unmarshal(out.Data, &assets))
	require.Len(t, assets, 1)
	assert.True(t, assets[0].EvalValueHome.Equal(decimal.NewFromInt(5000)))

	code, _ = do(t, app, "GET", "/history/assets", "")
	assert.Equal(t, fiber.StatusBadRequest, code)
}
