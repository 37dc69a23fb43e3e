package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"asset-ledger/internal/application/ledger"
	"asset-ledger/internal/application/pricing"
	"asset-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPortfolioRequired = errors.New("portfolio is required")
	ErrInvalidPoint      = errors.New("history point needs a date and a portfolio")
)

// Service records and reads the per-portfolio performance index.
type Service struct {
	DB               *gorm.DB
	Enricher         *pricing.Enricher
	DefaultPortfolio string
	Location         *time.Location
	MarketCloseHour  int
	Now              func() time.Time
}

// Recorded summarises one RecordPoint call.
type Recorded struct {
	Date       domain.Date                    `json:"date"`
	IsFinal    bool                           `json:"is_final"`
	Points     []domain.PortfolioHistoryPoint `json:"points"`
	Assets     int                            `json:"assets"`
	Degraded   []string                       `json:"degraded"`
	FXDegraded bool                           `json:"fx_degraded"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type bucket struct {
	eval      decimal.Decimal
	principal decimal.Decimal
}

// RecordPoint values the holdings as of asOf, groups them by portfolio and upserts one
// portfolio point per group plus the per-asset drill-down. Re-running on the same date
// overwrites that date's rows; the chain link always starts from the latest earlier point.
func (s *Service) RecordPoint(ctx context.Context, asOf domain.Date) (*Recorded, error) {
	now := s.now()
	if asOf.IsZero() {
		asOf = domain.NewDate(now.In(s.location()))
	}

	res, dir, err := ledger.ReconstructWith(s.DB.WithContext(ctx), s.DefaultPortfolio, ledger.Filter{Until: asOf})
	if err != nil {
		return nil, err
	}
	enricher := s.Enricher
	if enricher == nil {
		enricher = &pricing.Enricher{}
	}
	val := enricher.Enrich(ctx, res.Positions)

	final := IsFinal(asOf, now, s.location(), s.MarketCloseHour)
	groups := map[string]*bucket{}
	var assets []domain.AssetHistoryPoint
	for _, h := range val.Holdings {
		name := dir.PortfolioOf(h.Owner, h.Account)
		b, ok := groups[name]
		if !ok {
			b = &bucket{}
			groups[name] = b
		}
		b.eval = b.eval.Add(h.ValuationHome)
		b.principal = b.principal.Add(h.BookValueHome)

		if h.Quantity.IsZero() {
			continue
		}
		assets = append(assets, domain.AssetHistoryPoint{
			Date:          asOf,
			Owner:         h.Owner,
			Account:       h.Account,
			Asset:         h.Asset,
			Quantity:      h.Quantity,
			PriceNative:   h.CurrentPrice,
			EvalValueHome: h.ValuationHome.Round(2),
			IsFinal:       final,
		})
	}

	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	out := &Recorded{Date: asOf, IsFinal: final, Assets: len(assets), Degraded: val.Degraded, FXDegraded: val.FXDegraded}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			b := groups[name]
			prev, err := previousPoint(tx, name, asOf)
			if err != nil {
				return err
			}
			eval, principal := b.eval.Round(2), b.principal.Round(2)
			ref, index := NextPoint(prev, eval, principal)
			p := domain.PortfolioHistoryPoint{
				Date:              asOf,
				PortfolioName:     name,
				EvalValue:         eval,
				InvestedPrincipal: principal,
				RefPrice:          ref,
				IndexVal:          index,
				IsFinal:           final,
			}
			if err := upsertPortfolioPoint(tx, &p); err != nil {
				return err
			}
			out.Points = append(out.Points, p)
		}
		if len(assets) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "owner"}, {Name: "account_name"}, {Name: "asset_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"qty", "price_native", "eval_value_krw", "is_final", "updated_at"}),
		}).CreateInBatches(&assets, 200).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("date", asOf.String()).
		Bool("is_final", final).
		Int("portfolios", len(out.Points)).
		Int("assets", out.Assets).
		Msg("History point recorded")
	return out, nil
}

func previousPoint(tx *gorm.DB, portfolio string, before domain.Date) (*domain.PortfolioHistoryPoint, error) {
	var prev domain.PortfolioHistoryPoint
	err := tx.Where("portfolio_name = ? AND date < ?", portfolio, before).
		Order("date DESC").
		Limit(1).
		Find(&prev).Error
	if err != nil {
		return nil, err
	}
	if prev.ID == 0 {
		return nil, nil
	}
	return &prev, nil
}

func upsertPortfolioPoint(tx *gorm.DB, p *domain.PortfolioHistoryPoint) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "portfolio_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"eval_value", "invested_principal", "ref_price", "index_val", "is_final", "updated_at"}),
	}).Create(p).Error
}

// ImportHistory replaces the portfolio history with points loaded from an earlier system.
// Imported points are final. Points without a reference price are chain-linked in date
// order per portfolio.
func (s *Service) ImportHistory(ctx context.Context, points []domain.PortfolioHistoryPoint) (int, error) {
	clean := make([]domain.PortfolioHistoryPoint, 0, len(points))
	for _, p := range points {
		p.ID = 0
		p.PortfolioName = strings.TrimSpace(p.PortfolioName)
		if p.Date.IsZero() || p.PortfolioName == "" {
			return 0, ErrInvalidPoint
		}
		p.IsFinal = true
		clean = append(clean, p)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		if clean[i].PortfolioName != clean[j].PortfolioName {
			return clean[i].PortfolioName < clean[j].PortfolioName
		}
		return clean[i].Date.Before(clean[j].Date)
	})
	var prev *domain.PortfolioHistoryPoint
	for i := range clean {
		p := &clean[i]
		if prev != nil && prev.PortfolioName != p.PortfolioName {
			prev = nil
		}
		if prev != nil && prev.Date.Equal(p.Date) {
			return 0, fmt.Errorf("%w: duplicate %s on %s", ErrInvalidPoint, p.PortfolioName, p.Date)
		}
		if p.RefPrice.IsZero() {
			p.RefPrice, p.IndexVal = NextPoint(prev, p.EvalValue, p.InvestedPrincipal)
		}
		prev = p
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.PortfolioHistoryPoint{}).Error; err != nil {
			return err
		}
		if len(clean) == 0 {
			return nil
		}
		return tx.CreateInBatches(&clean, 200).Error
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("points", len(clean)).Msg("Portfolio history imported")
	return len(clean), nil
}

// Series returns a portfolio's points in date order. Zero from/to leave that end open.
func (s *Service) Series(ctx context.Context, portfolio string, from, to domain.Date) ([]domain.PortfolioHistoryPoint, error) {
	if strings.TrimSpace(portfolio) == "" {
		return nil, ErrPortfolioRequired
	}
	q := s.DB.WithContext(ctx).Where("portfolio_name = ?", portfolio)
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to)
	}
	var points []domain.PortfolioHistoryPoint
	err := q.Order("date").Find(&points).Error
	return points, err
}

// AssetSeries returns the drill-down rows recorded for one date.
func (s *Service) AssetSeries(ctx context.Context, date domain.Date) ([]domain.AssetHistoryPoint, error) {
	var rows []domain.AssetHistoryPoint
	err := s.DB.WithContext(ctx).
		Where("date = ?", date).
		Order("owner, account_name, asset_name").
		Find(&rows).Error
	return rows, err
}

func (s *Service) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}
