package handler

import (
	"net/http"

	"asset-ledger/internal/config"
	"asset-ledger/internal/interfaces/router"
	"asset-ledger/internal/pkg/logging"

	"github.com/gofiber/fiber/v2"
)

var fiberApp *fiber.App

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	logging.Setup(cfg.LogLevel, "json")
	fiberApp, _, err = router.CreateApp(cfg)
	if err != nil {
		panic("app create: " + err.Error())
	}
}

// Handler is the serverless entry point. All requests are rewritten here.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	router.Handler(fiberApp).ServeHTTP(w, r)
}
