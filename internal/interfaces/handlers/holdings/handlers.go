package holdings

import (
	"errors"

	"asset-ledger/internal/application/ledger"
	"asset-ledger/internal/application/pricing"
	"asset-ledger/internal/domain"
	"asset-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Ledger   *ledger.Service
	Enricher *pricing.Enricher
}

// GET /api/v1/holdings?owner=&account=&until=&priced=true
func (h *Handlers) List(c *fiber.Ctx) error {
	f := ledger.Filter{Owner: c.Query("owner"), Account: c.Query("account")}
	if s := c.Query("until"); s != "" {
		until, err := domain.ParseDate(s)
		if err != nil {
			return response.BadRequest(c, err)
		}
		f.Until = until
	}
	res, err := h.Ledger.Reconstruct(c.UserContext(), f)
	if err != nil {
		return err
	}
	meta := fiber.Map{"count": len(res.Positions), "skipped": res.Skipped}
	if !c.QueryBool("priced") {
		return response.Success(c, "Holdings fetched", res.Positions, meta)
	}

	enricher := h.Enricher
	if enricher == nil {
		enricher = &pricing.Enricher{}
	}
	val := enricher.Enrich(c.UserContext(), res.Positions)
	meta["fx_rate"] = val.FXRate
	meta["fx_degraded"] = val.FXDegraded
	meta["degraded"] = val.Degraded
	meta["total_home"] = val.TotalHome
	meta["book_home"] = val.BookHome
	return response.Success(c, "Holdings valued", val.Holdings, meta)
}

// GET /api/v1/baseline
func (h *Handlers) Baseline(c *fiber.Ctx) error {
	rows, err := h.Ledger.Baseline(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "Baseline fetched", rows, nil)
}

// PUT /api/v1/baseline
// Replaces the whole baseline; body {"rows":[...]}.
func (h *Handlers) ReplaceBaseline(c *fiber.Ctx) error {
	var body struct {
		Rows []domain.BaselineSnapshot `json:"rows"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	n, err := h.Ledger.ReplaceBaseline(c.UserContext(), body.Rows)
	if err != nil {
		if errors.Is(err, ledger.ErrBaselineKeyRequired) || errors.Is(err, ledger.ErrDuplicateBaselineKey) {
			return response.BadRequest(c, err)
		}
		return err
	}
	return response.Success(c, "Baseline replaced", fiber.Map{"rows": n}, nil)
}
