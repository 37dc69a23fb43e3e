package history

import (
	"errors"

	historysvc "asset-ledger/internal/application/history"
	"asset-ledger/internal/domain"
	"asset-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *historysvc.Service
}

func queryDate(c *fiber.Ctx, key string) (domain.Date, error) {
	s := c.Query(key)
	if s == "" {
		return domain.Date{}, nil
	}
	return domain.ParseDate(s)
}

// POST /api/v1/history/record?date=YYYY-MM-DD
// Without a date the point is recorded for today.
func (h *Handlers) Record(c *fiber.Ctx) error {
	date, err := queryDate(c, "date")
	if err != nil {
		return response.BadRequest(c, err)
	}
	rec, err := h.Service.RecordPoint(c.UserContext(), date)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "History point recorded", rec, nil)
}

// GET /api/v1/history/:portfolio?from=&to=
func (h *Handlers) Series(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return response.BadRequest(c, err)
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return response.BadRequest(c, err)
	}
	points, err := h.Service.Series(c.UserContext(), c.Params("portfolio"), from, to)
	if err != nil {
		if errors.Is(err, historysvc.ErrPortfolioRequired) {
			return response.BadRequest(c, err)
		}
		return err
	}
	return response.Success(c, "History fetched", points, fiber.Map{"count": len(points)})
}

// GET /api/v1/history/assets?date=
func (h *Handlers) Assets(c *fiber.Ctx) error {
	date, err := queryDate(c, "date")
	if err != nil || date.IsZero() {
		return response.Error(c, "date is required (YYYY-MM-DD)", fiber.StatusBadRequest, nil)
	}
	rows, err := h.Service.AssetSeries(c.UserContext(), date)
	if err != nil {
		return err
	}
	return response.Success(c, "Asset history fetched", rows, fiber.Map{"count": len(rows)})
}

// PUT /api/v1/history
// Replaces the portfolio history with imported points; body {"points":[...]}.
func (h *Handlers) Import(c *fiber.Ctx) error {
	var body struct {
		Points []domain.PortfolioHistoryPoint `json:"points"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	n, err := h.Service.ImportHistory(c.UserContext(), body.Points)
	if err != nil {
		if errors.Is(err, historysvc.ErrInvalidPoint) {
			return response.BadRequest(c, err)
		}
		return err
	}
	return response.Success(c, "History imported", fiber.Map{"points": n}, nil)
}
