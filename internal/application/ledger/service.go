package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrBaselineKeyRequired  = errors.New("baseline rows need owner, account and asset")
	ErrDuplicateBaselineKey = errors.New("duplicate baseline key")
)

// Filter narrows reconstruction to one owner and/or account. Empty fields match everything.
// A non-zero Until ignores transactions dated after it; the baseline always applies.
type Filter struct {
	Owner   string
	Account string
	Until   domain.Date
}

func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Owner != "" {
		db = db.Where("owner = ?", f.Owner)
	}
	if f.Account != "" {
		db = db.Where("account_name = ?", f.Account)
	}
	return db
}

// Service reads the baseline and the transaction log and derives holdings.
type Service struct {
	DB               *gorm.DB
	DefaultPortfolio string
}

// Reconstruct derives the holdings table for f from the committed store.
func (s *Service) Reconstruct(ctx context.Context, f Filter) (*Result, error) {
	res, _, err := ReconstructWith(s.DB.WithContext(ctx), s.DefaultPortfolio, f)
	return res, err
}

// ReconstructWith reconstructs through db, which may be a transaction handle, and also
// returns the directory it loaded so callers can group positions without a second read.
func ReconstructWith(db *gorm.DB, defaultPortfolio string, f Filter) (*Result, *masterdata.Directory, error) {
	dir, err := masterdata.LoadDirectory(db, defaultPortfolio)
	if err != nil {
		return nil, nil, err
	}

	var baseline []domain.BaselineSnapshot
	if err := f.apply(db.Model(&domain.BaselineSnapshot{})).Find(&baseline).Error; err != nil {
		return nil, nil, fmt.Errorf("load baseline: %w", err)
	}
	var txs []domain.Transaction
	q := f.apply(db.Model(&domain.Transaction{}))
	if !f.Until.IsZero() {
		q = q.Where("date <= ?", f.Until)
	}
	if err := q.
		Order("date, created_at").
		Find(&txs).Error; err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}

	res := Reconstruct(baseline, txs, dir)
	if res.Skipped > 0 {
		log.Warn().Int("skipped", res.Skipped).Msg("Skipped malformed transactions during reconstruction")
	}
	return &res, dir, nil
}

// ReplaceBaseline swaps the whole baseline table for rows in one transaction. Incremental
// merges are not supported.
func (s *Service) ReplaceBaseline(ctx context.Context, rows []domain.BaselineSnapshot) (int, error) {
	seen := make(map[domain.PositionKey]bool, len(rows))
	clean := make([]domain.BaselineSnapshot, 0, len(rows))
	for _, r := range rows {
		r.ID = 0
		r.Owner = strings.TrimSpace(r.Owner)
		r.Account = strings.TrimSpace(r.Account)
		r.Asset = strings.TrimSpace(r.Asset)
		if r.Owner == "" || r.Account == "" || r.Asset == "" {
			return 0, ErrBaselineKeyRequired
		}
		k := domain.PositionKey{Owner: r.Owner, Account: r.Account, Asset: r.Asset}
		if seen[k] {
			return 0, fmt.Errorf("%w: %s/%s/%s", ErrDuplicateBaselineKey, r.Owner, r.Account, r.Asset)
		}
		seen[k] = true
		if domain.IsCashAsset(r.Asset) {
			r.AssetClass = domain.ClassCash
		} else if r.AssetClass == "" {
			r.AssetClass = domain.ClassStock
		}
		clean = append(clean, r)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.BaselineSnapshot{}).Error; err != nil {
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
	log.Info().Int("rows", len(clean)).Msg("Baseline snapshot replaced")
	return len(clean), nil
}

// Baseline returns the active baseline rows.
func (s *Service) Baseline(ctx context.Context) ([]domain.BaselineSnapshot, error) {
	var rows []domain.BaselineSnapshot
	err := s.DB.WithContext(ctx).Order("owner, account_name, asset_name").Find(&rows).Error
	return rows, err
}
