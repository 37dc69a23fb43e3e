package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioHistoryPoint is one day of a portfolio's flow-adjusted performance index.
type PortfolioHistoryPoint struct {
	ID                uint            `gorm:"primaryKey" json:"-"`
	Date              Date            `gorm:"column:date;not null;uniqueIndex:idx_portfolio_history_key" json:"date"`
	PortfolioName     string          `gorm:"column:portfolio_name;not null;uniqueIndex:idx_portfolio_history_key" json:"portfolio_name"`
	EvalValue         decimal.Decimal `gorm:"column:eval_value;type:numeric;not null" json:"eval_value"`
	InvestedPrincipal decimal.Decimal `gorm:"column:invested_principal;type:numeric;not null" json:"invested_principal"`
	RefPrice          decimal.Decimal `gorm:"column:ref_price;type:numeric;not null" json:"ref_price"`
	IndexVal          decimal.Decimal `gorm:"column:index_val;type:numeric;not null" json:"index_val"`
	IsFinal           bool            `gorm:"column:is_final;not null" json:"is_final"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (PortfolioHistoryPoint) TableName() string {
	return "portfolio_history"
}

// AssetHistoryPoint is the per-position drill-down recorded alongside a portfolio point.
type AssetHistoryPoint struct {
	ID            uint            `gorm:"primaryKey" json:"-"`
	Date          Date            `gorm:"column:date;not null;uniqueIndex:idx_asset_history_key" json:"date"`
	Owner         string          `gorm:"column:owner;not null;uniqueIndex:idx_asset_history_key" json:"owner"`
	Account       string          `gorm:"column:account_name;not null;uniqueIndex:idx_asset_history_key" json:"account"`
	Asset         string          `gorm:"column:asset_name;not null;uniqueIndex:idx_asset_history_key" json:"asset"`
	Quantity      decimal.Decimal `gorm:"column:qty;type:numeric;not null" json:"quantity"`
	PriceNative   decimal.Decimal `gorm:"column:price_native;type:numeric;not null" json:"price_native"`
	EvalValueHome decimal.Decimal `gorm:"column:eval_value_krw;type:numeric;not null" json:"eval_value_home"`
	IsFinal       bool            `gorm:"column:is_final;not null" json:"is_final"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (AssetHistoryPoint) TableName() string {
	return "asset_history"
}
