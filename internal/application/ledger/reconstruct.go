package ledger

import (
	"sort"

	"asset-ledger/internal/domain"
)

// Catalog supplies asset master data. *masterdata.Directory satisfies it.
type Catalog interface {
	Asset(name string) (domain.Asset, bool)
}

// Result is a reconstructed holdings table. Positions are sorted by (owner, account, asset).
type Result struct {
	Positions []domain.HoldingPosition `json:"positions"`
	Skipped   int                      `json:"skipped"`
}

// ByKey indexes the positions.
func (r Result) ByKey() map[domain.PositionKey]domain.HoldingPosition {
	m := make(map[domain.PositionKey]domain.HoldingPosition, len(r.Positions))
	for _, p := range r.Positions {
		m[p.PositionKey] = p
	}
	return m
}

// Reconstruct unions the baseline with the transaction-derived deltas and sums them per
// (owner, account, asset). It has no state and no I/O. Rows with a blank date or an
// unknown type are skipped and counted. catalog may be nil.
func Reconstruct(baseline []domain.BaselineSnapshot, txs []domain.Transaction, catalog Catalog) Result {
	acc := make(map[domain.PositionKey]*domain.HoldingPosition)
	get := func(k domain.PositionKey) *domain.HoldingPosition {
		p, ok := acc[k]
		if !ok {
			p = &domain.HoldingPosition{PositionKey: k}
			describe(p, catalog)
			acc[k] = p
		}
		return p
	}

	for _, b := range baseline {
		p := get(domain.PositionKey{Owner: b.Owner, Account: b.Account, Asset: b.Asset})
		if p.Ticker == "" {
			p.Ticker = b.Ticker
		}
		if p.Currency == "" {
			p.Currency = b.Currency
		}
		if b.AssetClass != "" && !domain.IsCashAsset(b.Asset) {
			if _, known := lookup(catalog, b.Asset); !known {
				p.AssetClass = b.AssetClass
			}
		}
		book := b.BookValue
		if p.AssetClass == domain.ClassCash || p.AssetClass == domain.ClassUnlisted {
			book = b.Quantity
		}
		p.Quantity = p.Quantity.Add(b.Quantity)
		p.BookValue = p.BookValue.Add(book)
		p.Dividend = p.Dividend.Add(b.Dividend)
		p.Realized = p.Realized.Add(b.Realized)
		if b.AsOf.After(p.LastTransactionDate) {
			p.LastTransactionDate = b.AsOf
		}
	}

	skipped := 0
	for _, t := range txs {
		if t.Date.IsZero() || !knownType(t.Type) {
			skipped++
			continue
		}
		p := get(domain.PositionKey{Owner: t.Owner, Account: t.Account, Asset: t.Asset})
		d := apply(legOf(p), t)
		p.Quantity = p.Quantity.Add(d.qty)
		p.BookValue = p.BookValue.Add(d.book)
		p.Dividend = p.Dividend.Add(d.dividend)
		p.Realized = p.Realized.Add(d.realized)
		if t.Date.After(p.LastTransactionDate) {
			p.LastTransactionDate = t.Date
		}
	}

	out := make([]domain.HoldingPosition, 0, len(acc))
	for _, p := range acc {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PositionKey, out[j].PositionKey
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.Asset < b.Asset
	})
	return Result{Positions: out, Skipped: skipped}
}

func lookup(c Catalog, name string) (domain.Asset, bool) {
	if c == nil {
		return domain.Asset{}, false
	}
	return c.Asset(name)
}

func describe(p *domain.HoldingPosition, c Catalog) {
	switch p.Asset {
	case domain.CashHomeAsset:
		p.AssetClass, p.Currency = domain.ClassCash, domain.HomeCurrency
		return
	case domain.CashForeignAsset:
		p.AssetClass, p.Currency = domain.ClassCash, domain.ForeignCurrency
		return
	}
	p.AssetClass = domain.ClassStock
	if a, ok := lookup(c, p.Asset); ok {
		p.Ticker = a.Ticker
		p.Currency = a.Currency
		if a.AssetClass != "" && a.AssetClass != domain.ClassCash {
			p.AssetClass = a.AssetClass
		}
	}
}

func legOf(p *domain.HoldingPosition) leg {
	switch {
	case p.Asset == domain.CashHomeAsset:
		return legHomeCash
	case p.Asset == domain.CashForeignAsset:
		return legForeignCash
	case p.AssetClass == domain.ClassUnlisted:
		return legUnlisted
	}
	return legSecurity
}
