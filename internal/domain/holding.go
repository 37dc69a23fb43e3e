package domain

import (
	"github.com/shopspring/decimal"
)

// PositionKey identifies a holding.
type PositionKey struct {
	Owner   string `json:"owner"`
	Account string `json:"account"`
	Asset   string `json:"asset"`
}

// HoldingPosition is derived on demand from the baseline and the transaction log; it is never
// stored. Negative quantities are kept as-is so data-entry errors stay visible.
type HoldingPosition struct {
	PositionKey
	Ticker              string          `json:"ticker"`
	Currency            Currency        `json:"currency,omitempty"`
	AssetClass          AssetClass      `json:"asset_class"`
	Quantity            decimal.Decimal `json:"quantity"`
	BookValue           decimal.Decimal `json:"book_value"`
	Dividend            decimal.Decimal `json:"dividend"`
	Realized            decimal.Decimal `json:"realized"`
	LastTransactionDate Date            `json:"last_transaction_date"`
}

// AvgPrice is book value per unit, zero when the position holds no units.
func (h HoldingPosition) AvgPrice() decimal.Decimal {
	if h.Quantity.IsZero() {
		return decimal.Zero
	}
	return h.BookValue.Div(h.Quantity)
}

// IsCash reports whether the position is one of the reserved cash balances.
func (h HoldingPosition) IsCash() bool {
	return h.AssetClass == ClassCash || IsCashAsset(h.Asset)
}
