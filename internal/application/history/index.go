package history

import (
	"time"

	"asset-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

const indexPlaces = 6

var (
	hundred = decimal.NewFromInt(100)
	// BootstrapIndex is the index value of a portfolio's first point.
	BootstrapIndex = hundred
)

// NextPoint chain-links one day onto prev. With no previous point the reference price
// starts at the invested principal and the index at 100. Otherwise the reference price
// grows by the net capital flow (principal delta) relative to the previous valuation, so
// deposits and withdrawals do not move the index.
func NextPoint(prev *domain.PortfolioHistoryPoint, eval, principal decimal.Decimal) (ref, index decimal.Decimal) {
	if prev == nil {
		return principal, BootstrapIndex
	}
	if prev.EvalValue.IsPositive() {
		flow := principal.Sub(prev.InvestedPrincipal)
		ref = prev.EvalValue.Add(flow).Mul(prev.RefPrice).DivRound(prev.EvalValue, indexPlaces)
	} else {
		ref = principal
	}
	if !ref.IsPositive() {
		return ref, hundred
	}
	return ref, eval.Mul(hundred).DivRound(ref, indexPlaces)
}

// IsFinal reports whether a point dated asOf and computed at now is past the end-of-day
// cutoff. Points for earlier days are always final.
func IsFinal(asOf domain.Date, now time.Time, loc *time.Location, closeHour int) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := domain.NewDate(local)
	switch {
	case asOf.Before(today):
		return true
	case asOf.After(today):
		return false
	}
	return local.Hour() >= closeHour
}
