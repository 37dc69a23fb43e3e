package masterdata

import (
	"context"
	"errors"
	"strings"

	"asset-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNumberRequired = errors.New("account_number is required")
	ErrAssetNameRequired     = errors.New("asset_name is required")
)

// Service encapsulates account and asset master operations.
type Service struct {
	DB               *gorm.DB
	DefaultPortfolio string
}

// Load reads both masters into a Directory.
func (s *Service) Load(ctx context.Context) (*Directory, error) {
	return LoadDirectory(s.DB.WithContext(ctx), s.DefaultPortfolio)
}

// LoadDirectory reads both masters through db, which may be a transaction handle.
func LoadDirectory(db *gorm.DB, defaultPortfolio string) (*Directory, error) {
	var accounts []domain.Account
	if err := db.Order("account_number").Find(&accounts).Error; err != nil {
		return nil, err
	}
	var assets []domain.Asset
	if err := db.Order("asset_name").Find(&assets).Error; err != nil {
		return nil, err
	}
	return NewDirectory(accounts, assets).WithDefaultPortfolio(defaultPortfolio), nil
}

// UpsertAccounts inserts or refreshes account master rows keyed by account number.
func (s *Service) UpsertAccounts(ctx context.Context, accounts []domain.Account) (int, error) {
	rows := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		a.AccountNumber = strings.TrimSpace(a.AccountNumber)
		if a.AccountNumber == "" {
			return 0, ErrAccountNumberRequired
		}
		a.Owner = strings.TrimSpace(a.Owner)
		a.AccountName = strings.TrimSpace(a.AccountName)
		a.Portfolio = a.PortfolioName()
		rows = append(rows, a)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner", "account_name", "broker", "portfolio", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	log.Info().Int("accounts", len(rows)).Msg("Account master synced")
	return len(rows), nil
}

// UpsertAssets inserts or refreshes asset master rows keyed by asset name.
func (s *Service) UpsertAssets(ctx context.Context, assets []domain.Asset) (int, error) {
	rows := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		a.AssetName = strings.TrimSpace(a.AssetName)
		if a.AssetName == "" {
			return 0, ErrAssetNameRequired
		}
		a.Ticker = strings.TrimSpace(a.Ticker)
		if domain.IsCashAsset(a.AssetName) {
			a.AssetClass = domain.ClassCash
		} else if a.AssetClass == "" {
			a.AssetClass = domain.ClassStock
		}
		if a.Currency == "" {
			a.Currency = domain.HomeCurrency
		}
		rows = append(rows, a)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"ticker", "currency", "asset_class", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	log.Info().Int("assets", len(rows)).Msg("Asset master synced")
	return len(rows), nil
}
