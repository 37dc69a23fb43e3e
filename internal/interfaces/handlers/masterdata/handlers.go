package masterdata

import (
	"errors"

	mdsvc "asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"
	"asset-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *mdsvc.Service
}

// PUT /api/v1/accounts
func (h *Handlers) UpsertAccounts(c *fiber.Ctx) error {
	var body struct {
		Accounts []domain.Account `json:"accounts"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	n, err := h.Service.UpsertAccounts(c.UserContext(), body.Accounts)
	if err != nil {
		return masterError(c, err)
	}
	return response.Success(c, "Accounts synced", fiber.Map{"accounts": n}, nil)
}

// PUT /api/v1/assets
func (h *Handlers) UpsertAssets(c *fiber.Ctx) error {
	var body struct {
		Assets []domain.Asset `json:"assets"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.InvalidBody(c)
	}
	n, err := h.Service.UpsertAssets(c.UserContext(), body.Assets)
	if err != nil {
		return masterError(c, err)
	}
	return response.Success(c, "Assets synced", fiber.Map{"assets": n}, nil)
}

// GET /api/v1/portfolios
// Lists each account with the portfolio it is grouped under.
func (h *Handlers) Portfolios(c *fiber.Ctx) error {
	dir, err := h.Service.Load(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "Portfolios fetched", dir.Portfolios(), nil)
}

func masterError(c *fiber.Ctx, err error) error {
	if errors.Is(err, mdsvc.ErrAccountNumberRequired) || errors.Is(err, mdsvc.ErrAssetNameRequired) {
		return response.BadRequest(c, err)
	}
	return err
}
