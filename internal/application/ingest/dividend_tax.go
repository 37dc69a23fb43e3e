package ingest

import (
	"time"

	"asset-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type dividendKey struct {
	date    string
	owner   string
	account string
	asset   string
}

func keyOf(t domain.Transaction) dividendKey {
	return dividendKey{t.Date.String(), t.Owner, t.Account, t.Asset}
}

// MergeDividendTax folds each DividendTax row into the first Dividend row with the same
// date, owner, account and asset: |tax| is added to the dividend's TaxWithheld, its amount
// is reduced by the same value and the tax row is dropped. Tax rows without a matching
// dividend are kept. It returns the surviving rows (order preserved) and the number of
// merged tax rows.
//
// A merged dividend keeps the content hash of its gross amount.
func MergeDividendTax(txs []domain.Transaction) ([]domain.Transaction, int) {
	kept, _ := mergeDividendTax(txs)
	return kept, len(txs) - len(kept)
}

// mergeDividendTax also returns, for each input row, the index of the surviving row that
// carries it.
func mergeDividendTax(txs []domain.Transaction) ([]domain.Transaction, []int) {
	first := make(map[dividendKey]int)
	for i, t := range txs {
		if t.Type != domain.TxDividend {
			continue
		}
		if _, ok := first[keyOf(t)]; !ok {
			first[keyOf(t)] = i
		}
	}

	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	into := make([]int, len(txs))
	for i, t := range txs {
		into[i] = i
		if t.Type != domain.TxDividendTax {
			continue
		}
		j, ok := first[keyOf(t)]
		if !ok {
			continue
		}
		tax := t.Amount.Abs()
		out[j].TaxWithheld = out[j].TaxWithheld.Add(tax)
		out[j].Amount = out[j].Amount.Sub(tax).Round(2)
		into[i] = j
	}

	kept := make([]domain.Transaction, 0, len(out))
	pos := make([]int, len(out))
	for i, t := range out {
		if into[i] != i {
			continue
		}
		pos[i] = len(kept)
		kept = append(kept, t)
	}
	for i := range into {
		into[i] = pos[into[i]]
	}
	return kept, into
}

// foldStoredDividendTax nets dividend tax across batches. A tax row whose dividend is
// already stored updates that dividend and is dropped from the batch. A dividend in the
// batch absorbs tax rows that were stored on their own earlier, and those rows are deleted.
func foldStoredDividendTax(tx *gorm.DB, txs []domain.Transaction, now time.Time, res *SyncResult) ([]domain.Transaction, error) {
	seen := map[string]bool{}
	var dates []string
	for _, t := range txs {
		if t.Type != domain.TxDividend && t.Type != domain.TxDividendTax {
			continue
		}
		if d := t.Date.String(); !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return txs, nil
	}

	var stored []domain.Transaction
	if err := tx.Where("type IN ? AND date IN ?", []domain.TxType{domain.TxDividend, domain.TxDividendTax}, dates).
		Order("created_at").
		Find(&stored).Error; err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return txs, nil
	}
	storedDiv := map[dividendKey]domain.Transaction{}
	storedTax := map[dividendKey][]domain.Transaction{}
	for _, t := range stored {
		k := keyOf(t)
		if t.Type == domain.TxDividendTax {
			storedTax[k] = append(storedTax[k], t)
		} else if _, ok := storedDiv[k]; !ok {
			storedDiv[k] = t
		}
	}

	taxFor := map[dividendKey]decimal.Decimal{}
	var order []dividendKey
	kept := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		k := keyOf(t)
		switch t.Type {
		case domain.TxDividendTax:
			if _, ok := storedDiv[k]; ok {
				if _, ok := taxFor[k]; !ok {
					order = append(order, k)
				}
				taxFor[k] = taxFor[k].Add(t.Amount.Abs())
				res.Merged++
				continue
			}
		case domain.TxDividend:
			rows := storedTax[k]
			if len(rows) == 0 {
				break
			}
			if t.TaxWithheld.IsZero() {
				for _, r := range rows {
					t.TaxWithheld = t.TaxWithheld.Add(r.Amount.Abs())
				}
				t.Amount = t.Amount.Sub(t.TaxWithheld).Round(2)
			}
			ids := make([]uuid.UUID, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.TxID)
			}
			if err := tx.Where("tx_id IN ?", ids).Delete(&domain.Transaction{}).Error; err != nil {
				return nil, err
			}
			res.Merged += len(rows)
			delete(storedTax, k)
		}
		kept = append(kept, t)
	}

	for _, k := range order {
		d := storedDiv[k]
		tax := taxFor[k]
		if tax.Equal(d.TaxWithheld) {
			continue
		}
		gross := d.Amount.Add(d.TaxWithheld)
		if err := tx.Model(&domain.Transaction{}).
			Where("tx_id = ?", d.TxID).
			Updates(map[string]interface{}{
				"amount":       gross.Sub(tax).Round(2),
				"tax_withheld": tax,
				"synced_at":    now,
			}).Error; err != nil {
			return nil, err
		}
		res.Updated++
	}
	return kept, nil
}
