package ingest

import (
	"context"
	"errors"
	"fmt"

	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReviewedRow is a parsed candidate prepared for the user's confirmation. Selected is false
// for rows that look like something already in the store; the user may still re-select them.
// Index is the candidate's position in the input.
type ReviewedRow struct {
	Index      int    `json:"index"`
	Row        RawRow `json:"row"`
	Selected   bool   `json:"selected"`
	Duplicate  bool   `json:"duplicate"`
	Unresolved bool   `json:"unresolved"`
	Merged     bool   `json:"merged"`
	Reason     string `json:"reason,omitempty"`
}

// LooseKey is the advisory duplicate key: date, asset, type and quantity, without amount.
func LooseKey(date domain.Date, asset string, typ domain.TxType, qty decimal.Decimal) string {
	return fmt.Sprintf("%s_%s_%s_%s", date.String(), asset, typ, qty.StringFixed(2))
}

// Review prepares AI-parsed candidate rows for confirmation: owner/account are resolved from
// account numbers, tickers are mapped to asset names, dividend tax is paired with its
// dividend and likely duplicates of stored rows are deselected. It returns one verdict per
// candidate in input order, with rows in sheet form so confirmed rows can go to Sync as
// they are. Nothing is written.
func (s *Service) Review(ctx context.Context, candidates []RawRow) ([]ReviewedRow, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyBatch
	}
	dir, err := masterdata.LoadDirectory(s.DB.WithContext(ctx), s.DefaultPortfolio)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// One verdict per candidate, in input order.
	out := make([]ReviewedRow, len(candidates))
	var txs []domain.Transaction
	var from []int
	for i, c := range candidates {
		c.Asset = Cell(dir.AssetName(c.Asset.String()))
		t, err := normalize(c, dir, now)
		if err != nil {
			out[i] = ReviewedRow{
				Index:      i,
				Row:        c,
				Unresolved: errors.Is(err, ErrUnresolvedAccount),
				Reason:     err.Error(),
			}
			continue
		}
		txs = append(txs, t)
		from = append(from, i)
	}

	kept, into := mergeDividendTax(txs)
	merged := len(txs) - len(kept)
	if len(kept) == 0 {
		return out, nil
	}

	stored, err := s.looseKeys(ctx, kept)
	if err != nil {
		return nil, err
	}

	dupes := 0
	verdicts := make([]ReviewedRow, len(kept))
	for j, t := range kept {
		r := ReviewedRow{Row: toRaw(t), Selected: true}
		if stored[LooseKey(t.Date, t.Asset, t.Type, t.Quantity)] {
			r.Selected = false
			r.Duplicate = true
			r.Reason = "possible duplicate of a stored transaction"
			dupes++
		}
		verdicts[j] = r
	}
	for k, j := range into {
		i := from[k]
		if txs[k].Type != kept[j].Type {
			// The tax line rides with its dividend so a confirmed pair syncs as one row.
			out[i] = ReviewedRow{
				Index:     i,
				Row:       toRaw(txs[k]),
				Selected:  verdicts[j].Selected,
				Duplicate: verdicts[j].Duplicate,
				Merged:    true,
				Reason:    "withheld from the dividend of the same day",
			}
			continue
		}
		out[i] = verdicts[j]
		out[i].Index = i
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("merged", merged).
		Int("duplicates", dupes).
		Msg("Candidate review prepared")
	return out, nil
}

func (s *Service) looseKeys(ctx context.Context, txs []domain.Transaction) (map[string]bool, error) {
	from, to := txs[0].Date, txs[0].Date
	for _, t := range txs[1:] {
		if t.Date.Before(from) {
			from = t.Date
		}
		if t.Date.After(to) {
			to = t.Date
		}
	}
	var stored []domain.Transaction
	if err := s.DB.WithContext(ctx).
		Select("date", "asset_name", "type", "qty").
		Where("date >= ? AND date <= ?", from, to).
		Find(&stored).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(stored))
	for _, t := range stored {
		keys[LooseKey(t.Date, t.Asset, t.Type, t.Quantity)] = true
	}
	return keys, nil
}

func toRaw(t domain.Transaction) RawRow {
	return RawRow{
		Date:      Cell(t.Date.String()),
		Owner:     Cell(t.Owner),
		Account:   Cell(t.Account),
		Asset:     Cell(t.Asset),
		Type:      Cell(t.Type.Token()),
		Amount:    Cell(t.Amount.Add(t.TaxWithheld).String()),
		Quantity:  Cell(t.Quantity.String()),
		Price:     Cell(t.Price.String()),
		Fee:       Cell(t.Fee.String()),
		Currency:  Cell(t.Currency.Symbol()),
		Note:      Cell(t.Note),
		Status:    Cell(t.Status),
		SourceRow: t.SourceRow,
	}
}
