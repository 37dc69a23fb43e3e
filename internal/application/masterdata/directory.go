package masterdata

import (
	"sort"
	"strings"

	"asset-ledger/internal/domain"
)

// Directory is an in-memory view of the account and asset masters used while
// ingesting, reconstructing and grouping positions.
type Directory struct {
	accounts       []domain.Account
	byNumber       map[string]domain.Account
	byOwnerAccount map[[2]string]domain.Account
	assets         map[string]domain.Asset
	byTicker       map[string]string
	defaultGroup   string
}

// NewDirectory indexes the given master rows.
func NewDirectory(accounts []domain.Account, assets []domain.Asset) *Directory {
	d := &Directory{
		accounts:       accounts,
		byNumber:       make(map[string]domain.Account, len(accounts)),
		byOwnerAccount: make(map[[2]string]domain.Account, len(accounts)),
		assets:         make(map[string]domain.Asset, len(assets)),
		byTicker:       make(map[string]string, len(assets)),
		defaultGroup:   domain.DefaultPortfolio,
	}
	for _, a := range accounts {
		d.byNumber[strings.TrimSpace(a.AccountNumber)] = a
		d.byOwnerAccount[[2]string{a.Owner, a.AccountName}] = a
	}
	for _, a := range assets {
		d.assets[a.AssetName] = a
		if t := strings.ToUpper(strings.TrimSpace(a.Ticker)); t != "" && t != "-" {
			d.byTicker[t] = a.AssetName
		}
	}
	return d
}

// WithDefaultPortfolio overrides the group used for accounts with no portfolio label.
func (d *Directory) WithDefaultPortfolio(name string) *Directory {
	if strings.TrimSpace(name) != "" {
		d.defaultGroup = name
	}
	return d
}

// ResolveAccount finds the account for a number read off a statement. An exact match wins;
// otherwise the first master number contained in (or containing) the input is used, which
// tolerates masked or truncated numbers in screenshots.
func (d *Directory) ResolveAccount(number string) (domain.Account, bool) {
	n := strings.TrimSpace(number)
	if n == "" {
		return domain.Account{}, false
	}
	if a, ok := d.byNumber[n]; ok {
		return a, true
	}
	for _, a := range d.accounts {
		k := strings.TrimSpace(a.AccountNumber)
		if k == "" {
			continue
		}
		if strings.Contains(n, k) || strings.Contains(k, n) {
			return a, true
		}
	}
	return domain.Account{}, false
}

// Asset returns the master entry for an asset name.
func (d *Directory) Asset(name string) (domain.Asset, bool) {
	a, ok := d.assets[name]
	return a, ok
}

// AssetName maps a ticker or a name to the canonical asset name. Unknown values are returned
// unchanged so the user can fix them during review.
func (d *Directory) AssetName(tickerOrName string) string {
	v := strings.TrimSpace(tickerOrName)
	if name, ok := d.byTicker[strings.ToUpper(v)]; ok {
		return name
	}
	return v
}

// PortfolioOf returns the portfolio an (owner, account) pair belongs to.
func (d *Directory) PortfolioOf(owner, account string) string {
	if a, ok := d.byOwnerAccount[[2]string{owner, account}]; ok {
		if p := strings.TrimSpace(a.Portfolio); p != "" {
			return p
		}
	}
	return d.defaultGroup
}

// PortfolioAccounts lists the accounts grouped under one portfolio.
type PortfolioAccounts struct {
	Portfolio string           `json:"portfolio"`
	Accounts  []domain.Account `json:"accounts"`
}

// Portfolios groups the account master by portfolio, sorted by name.
func (d *Directory) Portfolios() []PortfolioAccounts {
	groups := map[string][]domain.Account{}
	for _, a := range d.accounts {
		name := d.PortfolioOf(a.Owner, a.AccountName)
		groups[name] = append(groups[name], a)
	}
	out := make([]PortfolioAccounts, 0, len(groups))
	for name, accounts := range groups {
		out = append(out, PortfolioAccounts{Portfolio: name, Accounts: accounts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Portfolio < out[j].Portfolio })
	return out
}
