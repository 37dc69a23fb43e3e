package router

import (
	"net/http"

	"asset-ledger/bootstrap"
	"asset-ledger/internal/config"
	healthhandler "asset-ledger/internal/interfaces/handlers/health"
	historyhandler "asset-ledger/internal/interfaces/handlers/history"
	holdhandler "asset-ledger/internal/interfaces/handlers/holdings"
	ingesthandler "asset-ledger/internal/interfaces/handlers/ingest"
	mdhandler "asset-ledger/internal/interfaces/handlers/masterdata"
	"asset-ledger/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// CreateApp builds the container from cfg and mounts every route on a new Fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *bootstrap.Container, error) {
	c, err := bootstrap.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return New(c), c, nil
}

// New mounts the API over an existing container.
func New(c *bootstrap.Container) *fiber.App {
	cfg := c.Config
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
		BodyLimit:               16 * 1024 * 1024,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.AllowedOrigin,
		AllowLocalhost: cfg.Env != "production",
	}))
	app.Use(middleware.HealthMarker(c.Rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Checker: c.Health, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/health/reset", hh.Reset)

	api := app.Group("/api/v1")

	ih := &ingesthandler.Handlers{Service: c.Ingest, Reconciler: c.Reconcile}
	api.Post("/sync", ih.Sync)
	api.Post("/sync/sheet", ih.SyncSheet)
	api.Post("/sync/review", ih.Review)
	api.Get("/sync/runs", ih.Runs)
	api.Post("/reconcile", ih.Reconcile)

	hold := &holdhandler.Handlers{Ledger: c.Ledger, Enricher: c.Enricher}
	api.Get("/holdings", hold.List)
	api.Get("/baseline", hold.Baseline)
	api.Put("/baseline", hold.ReplaceBaseline)

	md := &mdhandler.Handlers{Service: c.Masterdata}
	api.Put("/accounts", md.UpsertAccounts)
	api.Put("/assets", md.UpsertAssets)
	api.Get("/portfolios", md.Portfolios)

	hist := &historyhandler.Handlers{Service: c.History}
	api.Put("/history", hist.Import)
	api.Post("/history/record", hist.Record)
	api.Get("/history/assets", hist.Assets)
	api.Get("/history/:portfolio", hist.Series)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
