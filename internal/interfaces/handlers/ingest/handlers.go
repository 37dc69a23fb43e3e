package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	ingestsvc "asset-ledger/internal/application/ingest"
	"asset-ledger/internal/application/ledger"
	"asset-ledger/internal/application/reconcile"
	"asset-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const maxRunsLimit = 100

type Handlers struct {
	Service    *ingestsvc.Service
	Reconciler *reconcile.Service
}

type rowsBody struct {
	Source string              `json:"source"`
	Rows   []ingestsvc.RawRow `json:"rows"`
}

func (b rowsBody) source(fallback string) string {
	if s := strings.TrimSpace(b.Source); s != "" {
		return s
	}
	return fallback
}

// POST /api/v1/sync
func (h *Handlers) Sync(c *fiber.Ctx) error {
	var body rowsBody
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	res, err := h.Service.Sync(c.UserContext(), body.Rows, body.source("api"))
	if err != nil {
		return syncError(c, err)
	}
	return response.Success(c, "Sync completed", res, nil)
}

// POST /api/v1/sync/sheet
// Body is the exported journal tab as CSV, header row first.
func (h *Handlers) SyncSheet(c *fiber.Ctx) error {
	records, err := csv.NewReader(bytes.NewReader(c.Body())).ReadAll()
	if err != nil {
		return response.Error(c, "Invalid CSV: "+err.Error(), fiber.StatusBadRequest, nil)
	}
	if len(records) == 0 {
		return syncError(c, ingestsvc.ErrEmptyBatch)
	}
	rows, err := ingestsvc.ParseSheet(records[0], records[1:], ingestsvc.SheetMappingV1)
	if err != nil {
		return response.BadRequest(c, err)
	}
	res, err := h.Service.Sync(c.UserContext(), rows, "sheet")
	if err != nil {
		return syncError(c, err)
	}
	return response.Success(c, "Sync completed", res, nil)
}

// POST /api/v1/sync/review
func (h *Handlers) Review(c *fiber.Ctx) error {
	var body rowsBody
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	reviewed, err := h.Service.Review(c.UserContext(), body.Rows)
	if err != nil {
		return syncError(c, err)
	}
	dups := 0
	for _, r := range reviewed {
		if r.Duplicate {
			dups++
		}
	}
	return response.Success(c, "Rows reviewed", reviewed, fiber.Map{"total": len(reviewed), "duplicates": dups})
}

// GET /api/v1/sync/runs?limit=
func (h *Handlers) Runs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	runs, err := h.Service.RecentRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return response.Success(c, "Sync runs fetched", runs, nil)
}

// POST /api/v1/reconcile?owner=&account=
func (h *Handlers) Reconcile(c *fiber.Ctx) error {
	var body rowsBody
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	f := ledger.Filter{Owner: c.Query("owner"), Account: c.Query("account")}
	out, err := h.Reconciler.Reconcile(c.UserContext(), body.Rows, body.source("api"), f)
	if err != nil {
		return syncError(c, err)
	}
	return response.Success(c, "Reconciled", out, nil)
}

func syncError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ingestsvc.ErrEmptyBatch) {
		return response.BadRequest(c, err)
	}
	return err
}
