package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaselineSnapshot is the opening inventory of one (owner, account, asset) at the cutover date.
// The table is replaced as a whole; rows are never merged incrementally.
type BaselineSnapshot struct {
	ID         uint            `gorm:"primaryKey" json:"-"`
	Owner      string          `gorm:"column:owner;not null;uniqueIndex:idx_baseline_key" json:"owner"`
	Account    string          `gorm:"column:account_name;not null;uniqueIndex:idx_baseline_key" json:"account"`
	Asset      string          `gorm:"column:asset_name;not null;uniqueIndex:idx_baseline_key" json:"asset"`
	Ticker     string          `gorm:"column:ticker" json:"ticker"`
	Quantity   decimal.Decimal `gorm:"column:qty;type:numeric;not null" json:"quantity"`
	AvgPrice   decimal.Decimal `gorm:"column:price;type:numeric;not null" json:"avg_price"`
	BookValue  decimal.Decimal `gorm:"column:amount;type:numeric;not null" json:"book_value"`
	Dividend   decimal.Decimal `gorm:"column:dividend;type:numeric;not null" json:"dividend"`
	Realized   decimal.Decimal `gorm:"column:realized;type:numeric;not null" json:"realized"`
	Currency   Currency        `gorm:"column:currency;type:varchar(8)" json:"currency"`
	AssetClass AssetClass      `gorm:"column:asset_class;type:varchar(16)" json:"asset_class"`
	AsOf       Date            `gorm:"column:as_of" json:"as_of"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (BaselineSnapshot) TableName() string {
	return "inventory_snapshot"
}
