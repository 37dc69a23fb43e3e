package ledger

import (
	"asset-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// leg is the ledger stream a transaction row belongs to. It is decided by the asset
// (and its class), never by the transaction type.
type leg int

const (
	legSecurity leg = iota
	legUnlisted
	legHomeCash
	legForeignCash
)

func (l leg) cashCurrency() domain.Currency {
	switch l {
	case legHomeCash:
		return domain.HomeCurrency
	case legForeignCash:
		return domain.ForeignCurrency
	}
	return ""
}

// delta is the contribution of a single row to its position.
type delta struct {
	qty      decimal.Decimal
	book     decimal.Decimal
	dividend decimal.Decimal
	realized decimal.Decimal
}

type handler func(l leg, t domain.Transaction) delta

type ruleKey struct {
	typ domain.TxType
	leg leg
}

// rules has exactly one handler per (type, leg) pair that moves a position. Pairs that are
// absent contribute nothing.
var rules = map[ruleKey]handler{
	{domain.TxBuy, legSecurity}:             securityBuy,
	{domain.TxSell, legSecurity}:            securitySell,
	{domain.TxRealizedGainAdj, legSecurity}: securityRealized,
	{domain.TxDividend, legSecurity}:        income,
	{domain.TxInterest, legSecurity}:        income,
	{domain.TxDividendTax, legSecurity}:     incomeTax,

	{domain.TxBuy, legUnlisted}:             unlistedBuy,
	{domain.TxSell, legUnlisted}:            unlistedSell,
	{domain.TxRealizedGainAdj, legUnlisted}: unlistedRealized,
	{domain.TxDividend, legUnlisted}:        income,
	{domain.TxInterest, legUnlisted}:        income,
	{domain.TxDividendTax, legUnlisted}:     incomeTax,

	{domain.TxDeposit, legHomeCash}:     cashDeposit,
	{domain.TxWithdrawal, legHomeCash}:  cashWithdrawal,
	{domain.TxExchange, legHomeCash}:    cashExchange,
	{domain.TxSell, legHomeCash}:        cashSell,
	{domain.TxBuy, legHomeCash}:         cashBuy,
	{domain.TxDividend, legHomeCash}:    cashIncome,
	{domain.TxInterest, legHomeCash}:    cashIncome,
	{domain.TxDividendTax, legHomeCash}: cashIncomeTax,

	{domain.TxDeposit, legForeignCash}:     cashDeposit,
	{domain.TxWithdrawal, legForeignCash}:  cashWithdrawal,
	{domain.TxExchange, legForeignCash}:    cashExchange,
	{domain.TxSell, legForeignCash}:        cashSell,
	{domain.TxBuy, legForeignCash}:         cashBuy,
	{domain.TxDividend, legForeignCash}:    cashIncome,
	{domain.TxInterest, legForeignCash}:    cashIncome,
	{domain.TxDividendTax, legForeignCash}: cashIncomeTax,
}

// apply returns the contribution of t on leg l.
func apply(l leg, t domain.Transaction) delta {
	h, ok := rules[ruleKey{t.Type, l}]
	if !ok {
		return delta{}
	}
	return h(l, t)
}

func knownType(t domain.TxType) bool {
	switch t {
	case domain.TxBuy, domain.TxSell, domain.TxDividend, domain.TxDividendTax, domain.TxInterest,
		domain.TxDeposit, domain.TxWithdrawal, domain.TxExchange, domain.TxRealizedGainAdj:
		return true
	}
	return false
}

func securityBuy(_ leg, t domain.Transaction) delta {
	return delta{qty: t.Quantity, book: t.Amount}
}

func securitySell(_ leg, t domain.Transaction) delta {
	return delta{qty: t.Quantity.Neg(), book: t.Amount.Neg()}
}

func securityRealized(_ leg, t domain.Transaction) delta {
	return delta{book: t.Amount, realized: t.Amount}
}

// Unlisted holdings have no market price; their book value follows quantity.
func unlistedBuy(_ leg, t domain.Transaction) delta {
	return delta{qty: t.Quantity, book: t.Quantity}
}

func unlistedSell(_ leg, t domain.Transaction) delta {
	return delta{qty: t.Quantity.Neg(), book: t.Quantity.Neg()}
}

func unlistedRealized(_ leg, t domain.Transaction) delta {
	return delta{realized: t.Amount}
}

func income(_ leg, t domain.Transaction) delta {
	return delta{dividend: t.Amount}
}

// Tax rows only reach the ledger when no dividend was there to absorb them.
func incomeTax(_ leg, t domain.Transaction) delta {
	return delta{dividend: t.Amount.Abs().Neg()}
}

func cashOnly(v decimal.Decimal) delta {
	return delta{qty: v, book: v}
}

func sameCurrency(l leg, t domain.Transaction) bool {
	return t.Currency == l.cashCurrency()
}

func cashDeposit(_ leg, t domain.Transaction) delta {
	return cashOnly(t.Quantity)
}

func cashWithdrawal(_ leg, t domain.Transaction) delta {
	return cashOnly(t.Quantity.Neg())
}

// An exchange row tagged with this balance's currency is the receiving leg (+qty); tagged
// with the other currency it is the paying leg (-amount converted).
func cashExchange(l leg, t domain.Transaction) delta {
	if sameCurrency(l, t) {
		return cashOnly(t.Quantity)
	}
	return cashOnly(t.Amount.Neg())
}

func cashSell(l leg, t domain.Transaction) delta {
	if !sameCurrency(l, t) {
		return delta{}
	}
	return cashOnly(t.Amount)
}

func cashBuy(l leg, t domain.Transaction) delta {
	if !sameCurrency(l, t) {
		return delta{}
	}
	return cashOnly(t.Amount.Neg())
}

func cashIncome(l leg, t domain.Transaction) delta {
	if !sameCurrency(l, t) {
		return delta{}
	}
	return cashOnly(t.Amount)
}

func cashIncomeTax(l leg, t domain.Transaction) delta {
	if !sameCurrency(l, t) {
		return delta{}
	}
	return cashOnly(t.Amount.Abs().Neg())
}
