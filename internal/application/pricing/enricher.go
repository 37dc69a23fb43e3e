package pricing

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"asset-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PriceFeed fetches live quotes. Quotes may return a partial map together with an error
// describing the batches that failed.
type PriceFeed interface {
	Quotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
	FXRate(ctx context.Context) (decimal.Decimal, error)
}

// Cache is a TTL-bounded price store owned by the caller. Misses are not errors.
type Cache interface {
	Prices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)
	StorePrices(ctx context.Context, prices map[string]decimal.Decimal) error
	FX(ctx context.Context) (decimal.Decimal, bool, error)
	LastFX(ctx context.Context) (decimal.Decimal, bool, error)
	StoreFX(ctx context.Context, rate decimal.Decimal) error
}

// Price sources reported per holding.
const (
	SourceCash  = "cash"
	SourceLive  = "live"
	SourceCache = "cache"
	SourceCost  = "cost"
)

// ValuedHolding is a position with its current price and valuations in native and home currency.
type ValuedHolding struct {
	domain.HoldingPosition
	NativeCurrency  domain.Currency `json:"native_currency"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	PriceSource     string          `json:"price_source"`
	ValuationNative decimal.Decimal `json:"valuation_native"`
	ValuationHome   decimal.Decimal `json:"valuation_home"`
	BookValueHome   decimal.Decimal `json:"book_value_home"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`
}

// Valuation is the enriched holdings table plus what had to be approximated.
type Valuation struct {
	Holdings   []ValuedHolding `json:"holdings"`
	FXRate     decimal.Decimal `json:"fx_rate"`
	FXDegraded bool            `json:"fx_degraded"`
	Degraded   []string        `json:"degraded"`
	TotalHome  decimal.Decimal `json:"total_home"`
	BookHome   decimal.Decimal `json:"book_home"`
}

// Enricher prices holdings through Feed, consulting Cache first when it is set.
type Enricher struct {
	Feed  PriceFeed
	Cache Cache
}

// NativeCurrency decides the currency a holding is quoted in. Explicit metadata wins; for
// securities without it a six-digit ticker is a home-market listing and an alphabetic
// ticker a foreign one.
func NativeCurrency(h domain.HoldingPosition) domain.Currency {
	switch h.Asset {
	case domain.CashHomeAsset:
		return domain.HomeCurrency
	case domain.CashForeignAsset:
		return domain.ForeignCurrency
	}
	if h.Currency != "" {
		return h.Currency
	}
	t := strings.TrimSpace(h.Ticker)
	if t == "" {
		return domain.HomeCurrency
	}
	if len(t) == 6 && strings.IndexFunc(t, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return domain.HomeCurrency
	}
	if strings.IndexFunc(t, func(r rune) bool { return !unicode.IsLetter(r) && r != '.' && r != '-' }) < 0 {
		return domain.ForeignCurrency
	}
	return domain.HomeCurrency
}

// Enrich values every holding. Feed failures never abort: missing prices fall back to the
// cache, then to the position's average cost, and a missing FX rate falls back to the last
// good rate, then to 1.
func (e *Enricher) Enrich(ctx context.Context, holdings []domain.HoldingPosition) *Valuation {
	tickers := tickersOf(holdings)
	prices, live := e.prices(ctx, tickers)
	fx, fxDegraded := e.fxRate(ctx)

	v := Value(holdings, prices, fx)
	v.FXDegraded = fxDegraded
	for i := range v.Holdings {
		if v.Holdings[i].PriceSource == SourceLive && !live[v.Holdings[i].Ticker] {
			v.Holdings[i].PriceSource = SourceCache
		}
	}
	if len(v.Degraded) > 0 || fxDegraded {
		log.Warn().Strs("tickers", v.Degraded).Bool("fx_degraded", fxDegraded).Msg("Valuation used fallback prices")
	}
	return v
}

// Value is the deterministic core of Enrich: given the holdings, a price map keyed by ticker
// and the foreign-to-home rate it produces the same valuation every time.
func Value(holdings []domain.HoldingPosition, prices map[string]decimal.Decimal, fx decimal.Decimal) *Valuation {
	v := &Valuation{Holdings: make([]ValuedHolding, 0, len(holdings)), FXRate: fx, Degraded: []string{}}
	degraded := map[string]bool{}
	for _, h := range holdings {
		vh := ValuedHolding{HoldingPosition: h, NativeCurrency: NativeCurrency(h), AvgPrice: h.AvgPrice()}
		switch {
		case h.IsCash():
			vh.CurrentPrice, vh.PriceSource = decimal.NewFromInt(1), SourceCash
		default:
			if p, ok := prices[h.Ticker]; ok && h.Ticker != "" && p.IsPositive() {
				vh.CurrentPrice, vh.PriceSource = p, SourceLive
			} else {
				vh.CurrentPrice, vh.PriceSource = vh.AvgPrice, SourceCost
				if h.Ticker != "" && !degraded[h.Ticker] {
					degraded[h.Ticker] = true
					v.Degraded = append(v.Degraded, h.Ticker)
				}
			}
		}

		rate := decimal.NewFromInt(1)
		if vh.NativeCurrency == domain.ForeignCurrency {
			rate = fx
		}
		vh.ValuationNative = h.Quantity.Mul(vh.CurrentPrice)
		vh.ValuationHome = vh.ValuationNative.Mul(rate)
		vh.BookValueHome = h.BookValue.Mul(rate)
		vh.UnrealizedPnL = vh.ValuationHome.Sub(vh.BookValueHome)

		v.TotalHome = v.TotalHome.Add(vh.ValuationHome)
		v.BookHome = v.BookHome.Add(vh.BookValueHome)
		v.Holdings = append(v.Holdings, vh)
	}
	sort.Strings(v.Degraded)
	return v
}

func tickersOf(holdings []domain.HoldingPosition) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range holdings {
		if h.IsCash() || h.Ticker == "" || seen[h.Ticker] {
			continue
		}
		seen[h.Ticker] = true
		out = append(out, h.Ticker)
	}
	sort.Strings(out)
	return out
}

// prices returns the best known price per ticker and which of them came from the feed.
func (e *Enricher) prices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, map[string]bool) {
	out := make(map[string]decimal.Decimal, len(tickers))
	live := make(map[string]bool, len(tickers))
	if len(tickers) == 0 {
		return out, live
	}

	missing := tickers
	if e.Cache != nil {
		cached, err := e.Cache.Prices(ctx, tickers)
		if err != nil {
			log.Warn().Err(err).Msg("Price cache read failed")
		}
		missing = missing[:0:0]
		for _, t := range tickers {
			if p, ok := cached[t]; ok {
				out[t] = p
				continue
			}
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 || e.Feed == nil {
		return out, live
	}

	fetched, err := e.Feed.Quotes(ctx, missing)
	if err != nil {
		log.Warn().Err(err).Int("requested", len(missing)).Int("received", len(fetched)).Msg("Quote feed returned partial results")
	}
	for t, p := range fetched {
		out[t] = p
		live[t] = true
	}
	if e.Cache != nil && len(fetched) > 0 {
		if err := e.Cache.StorePrices(ctx, fetched); err != nil {
			log.Warn().Err(err).Msg("Price cache write failed")
		}
	}
	return out, live
}

func (e *Enricher) fxRate(ctx context.Context) (decimal.Decimal, bool) {
	if e.Cache != nil {
		if r, ok, err := e.Cache.FX(ctx); err == nil && ok {
			return r, false
		}
	}
	if e.Feed != nil {
		r, err := e.Feed.FXRate(ctx)
		if err == nil && r.IsPositive() {
			if e.Cache != nil {
				if err := e.Cache.StoreFX(ctx, r); err != nil {
					log.Warn().Err(err).Msg("FX cache write failed")
				}
			}
			return r, false
		}
		log.Warn().Err(err).Msg("FX fetch failed")
	}
	if e.Cache != nil {
		if r, ok, err := e.Cache.LastFX(ctx); err == nil && ok {
			return r, true
		}
	}
	return decimal.NewFromInt(1), true
}
