package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TxType is the economic kind of a ledger event.
type TxType string

const (
	TxBuy             TxType = "Buy"
	TxSell            TxType = "Sell"
	TxDividend        TxType = "Dividend"
	TxDividendTax     TxType = "DividendTax"
	TxInterest        TxType = "Interest"
	TxDeposit         TxType = "Deposit"
	TxWithdrawal      TxType = "Withdrawal"
	TxExchange        TxType = "Exchange"
	TxRealizedGainAdj TxType = "RealizedGainAdj"
)

// typeTokens maps the source sheet's type tokens (and English aliases) to TxType.
var typeTokens = map[string]TxType{
	"매수":   TxBuy,
	"매도":   TxSell,
	"배당금":  TxDividend,
	"배당세":  TxDividendTax,
	"이자":   TxInterest,
	"입금":   TxDeposit,
	"출금":   TxWithdrawal,
	"환전":   TxExchange,
	"확정손익": TxRealizedGainAdj,

	"buy":             TxBuy,
	"sell":            TxSell,
	"dividend":        TxDividend,
	"dividendtax":     TxDividendTax,
	"interest":        TxInterest,
	"deposit":         TxDeposit,
	"withdrawal":      TxWithdrawal,
	"exchange":        TxExchange,
	"realizedgainadj": TxRealizedGainAdj,
}

// ParseTxType resolves a raw type token. The second result is false for unknown tokens.
func ParseTxType(s string) (TxType, bool) {
	s = strings.TrimSpace(s)
	if t, ok := typeTokens[s]; ok {
		return t, true
	}
	t, ok := typeTokens[strings.ToLower(strings.ReplaceAll(s, " ", ""))]
	return t, ok
}

// Token returns the sheet token for t.
func (t TxType) Token() string {
	for k, v := range typeTokens {
		if v == t && k != strings.ToLower(string(t)) {
			return k
		}
	}
	return string(t)
}

// Currency is the settlement currency of a ledger line.
type Currency string

const (
	KRW Currency = "KRW"
	USD Currency = "USD"

	HomeCurrency    = KRW
	ForeignCurrency = USD
)

// ParseCurrency maps currency symbols and codes. Blank input returns "" so callers can infer.
func ParseCurrency(s string) (Currency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "₩", "KRW", "원", "WON", "HOME":
		return KRW, true
	case "$", "USD", "US$", "달러", "FOREIGN":
		return USD, true
	}
	return "", false
}

// Symbol returns the display symbol used by the source sheet.
func (c Currency) Symbol() string {
	switch c {
	case KRW:
		return "₩"
	case USD:
		return "$"
	}
	return string(c)
}

// Reserved asset names denoting cash balances.
const (
	CashHomeAsset    = "원화"
	CashForeignAsset = "달러"
)

// IsCashAsset reports whether asset is one of the reserved cash assets.
func IsCashAsset(asset string) bool {
	return asset == CashHomeAsset || asset == CashForeignAsset
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSettled Status = "Settled"
)

// ParseStatus maps status hints from the sheet and from AI output. Anything that does not
// look like an open order is Settled.
func ParseStatus(s string) Status {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return StatusSettled
	case v == "pending", v == "미결제", strings.Contains(v, "체결"), strings.Contains(v, "주문"):
		return StatusPending
	}
	return StatusSettled
}

// Transaction is one financial event in the append-only log. ContentHash is derived from
// the economic key fields only, so a status transition updates the row in place. A
// dividend keeps the hash of its gross amount; Amount is net of TaxWithheld.
type Transaction struct {
	TxID        uuid.UUID       `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	Date        Date            `gorm:"column:date;not null;index:idx_txn_date" json:"date"`
	Owner       string          `gorm:"column:owner;not null;index:idx_txn_owner_asset" json:"owner"`
	Account     string          `gorm:"column:account_name;not null" json:"account"`
	Asset       string          `gorm:"column:asset_name;not null;index:idx_txn_owner_asset" json:"asset"`
	Type        TxType          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric;not null" json:"amount"`
	Quantity    decimal.Decimal `gorm:"column:qty;type:numeric;not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric;not null" json:"price"`
	Fee         decimal.Decimal `gorm:"column:fee;type:numeric;not null" json:"fee"`
	Currency    Currency        `gorm:"column:currency;type:varchar(8)" json:"currency"`
	Status      Status          `gorm:"column:status;type:varchar(16);not null" json:"status"`
	TaxWithheld decimal.Decimal `gorm:"column:tax_withheld;type:numeric;not null;default:0" json:"tax_withheld"`
	Note        string          `gorm:"column:note" json:"note"`
	ContentHash string          `gorm:"column:content_hash;type:varchar(64);not null;uniqueIndex" json:"content_hash"`
	SourceRow   int             `gorm:"column:source_row_index" json:"source_row,omitempty"`
	Source      datatypes.JSON  `gorm:"column:source" json:"-"`
	SyncedAt    time.Time       `gorm:"column:synced_at" json:"synced_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction_log"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
