package domain

import (
	"strings"
	"time"
)

// DefaultPortfolio groups accounts that carry no portfolio label.
const DefaultPortfolio = "General"

// Account maps a brokerage account number to its owner, display name and portfolio.
type Account struct {
	AccountNumber string    `gorm:"column:account_number;primaryKey" json:"account_number"`
	Owner         string    `gorm:"column:owner;not null;index:idx_account_lookup" json:"owner"`
	AccountName   string    `gorm:"column:account_name;not null;index:idx_account_lookup" json:"account_name"`
	Broker        string    `gorm:"column:broker" json:"broker"`
	Portfolio     string    `gorm:"column:portfolio" json:"portfolio"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "account_master"
}

// PortfolioName returns the account's portfolio label, or DefaultPortfolio.
func (a Account) PortfolioName() string {
	if p := strings.TrimSpace(a.Portfolio); p != "" {
		return p
	}
	return DefaultPortfolio
}

// AssetClass drives which ledger rules apply to an asset.
type AssetClass string

const (
	ClassCash     AssetClass = "Cash"
	ClassStock    AssetClass = "Stock"
	ClassUnlisted AssetClass = "Unlisted"
)

// ParseAssetClass is lenient: unknown labels are treated as listed securities.
func ParseAssetClass(s string) AssetClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "현금":
		return ClassCash
	case "unlisted", "비상장", "예금", "deposit":
		return ClassUnlisted
	}
	return ClassStock
}

// Asset carries the ticker and explicit currency metadata of a named asset.
type Asset struct {
	AssetName  string     `gorm:"column:asset_name;primaryKey" json:"asset_name"`
	Ticker     string     `gorm:"column:ticker;index:idx_asset_ticker" json:"ticker"`
	Currency   Currency   `gorm:"column:currency;type:varchar(8)" json:"currency"`
	AssetClass AssetClass `gorm:"column:asset_class;type:varchar(16)" json:"asset_class"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Asset) TableName() string {
	return "asset_master"
}
