package ingest

import (
	"context"
	"encoding/json"
	"time"

	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	lookupChunk = 500
	insertBatch = 200
)

// Service is the deduplicating ingestion gate in front of the transaction log.
type Service struct {
	DB               *gorm.DB
	DefaultPortfolio string
	Now              func() time.Time
}

// SyncResult summarises one Sync call.
type SyncResult struct {
	RunID     uuid.UUID  `json:"run_id"`
	Received  int        `json:"received"`
	Inserted  int        `json:"inserted"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Skipped   int        `json:"skipped"`
	Merged    int        `json:"merged"`
	Errors    []RowError `json:"errors"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sync upserts raw rows into the transaction log. A row whose content hash already exists
// only moves its advisory fields (status, note, date); everything else is inserted. Rows
// that cannot be normalised are skipped and reported in Errors. The store write is
// committed before Sync returns.
func (s *Service) Sync(ctx context.Context, rows []RawRow, source string) (*SyncResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	started := s.now()
	res := &SyncResult{Received: len(rows), Errors: []RowError{}}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dir, err := masterdata.LoadDirectory(tx, s.DefaultPortfolio)
		if err != nil {
			return err
		}

		txs := make([]domain.Transaction, 0, len(rows))
		for i, r := range rows {
			t, err := normalize(r, dir, started)
			if err != nil {
				res.Errors = append(res.Errors, RowError{Index: i, SourceRow: r.SourceRow, Reason: err.Error(), Err: err})
				log.Debug().Int("row", i).Err(err).Msg("Skipping row")
				continue
			}
			txs = append(txs, t)
		}
		res.Skipped = len(res.Errors)

		txs, res.Merged = MergeDividendTax(txs)
		txs, dup := uniqueByHash(txs)
		res.Unchanged += dup
		txs, err = foldStoredDividendTax(tx, txs, started, res)
		if err != nil {
			return err
		}

		existing, err := loadByHash(tx, txs)
		if err != nil {
			return err
		}

		var fresh []domain.Transaction
		for _, t := range txs {
			old, ok := existing[t.ContentHash]
			if !ok {
				fresh = append(fresh, t)
				continue
			}
			changes := advisoryChanges(old, t)
			if len(changes) == 0 {
				res.Unchanged++
				continue
			}
			changes["synced_at"] = started
			if err := tx.Model(&domain.Transaction{}).
				Where("tx_id = ?", old.TxID).
				Updates(changes).Error; err != nil {
				return err
			}
			res.Updated++
		}

		if len(fresh) > 0 {
			// A concurrent writer may have inserted the same hash since the lookup.
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "content_hash"}},
				DoNothing: true,
			}).CreateInBatches(&fresh, insertBatch)
			if ins.Error != nil {
				return ins.Error
			}
			res.Inserted = int(ins.RowsAffected)
			res.Unchanged += len(fresh) - res.Inserted
		}

		run := domain.SyncRun{
			Source:     source,
			StartedAt:  started,
			FinishedAt: s.now(),
			Received:   res.Received,
			Inserted:   res.Inserted,
			Updated:    res.Updated,
			Unchanged:  res.Unchanged,
			Skipped:    res.Skipped,
			Merged:     res.Merged,
		}
		if b, err := json.Marshal(res.Errors); err == nil {
			run.Errors = datatypes.JSON(b)
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		res.RunID = run.RunID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", source).
		Int("received", res.Received).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("skipped", res.Skipped).
		Int("merged", res.Merged).
		Msg("Transaction sync finished")
	return res, nil
}

// advisoryChanges returns the column updates needed to move old towards incoming. Status
// only moves forward: a settled row never goes back to pending. A dividend re-synced with
// its tax line takes the new withholding; one re-synced without it keeps the stored net.
func advisoryChanges(old, incoming domain.Transaction) map[string]interface{} {
	changes := map[string]interface{}{}
	if old.Status == domain.StatusPending && incoming.Status == domain.StatusSettled {
		changes["status"] = domain.StatusSettled
	}
	if incoming.Type == domain.TxDividend && !incoming.TaxWithheld.IsZero() && !incoming.TaxWithheld.Equal(old.TaxWithheld) {
		changes["tax_withheld"] = incoming.TaxWithheld
		changes["amount"] = incoming.Amount
	}
	if incoming.Note != "" && incoming.Note != old.Note {
		changes["note"] = incoming.Note
	}
	if !incoming.Date.IsZero() && !incoming.Date.Equal(old.Date) {
		changes["date"] = incoming.Date
	}
	return changes
}

// uniqueByHash keeps the last occurrence of each hash in a batch, preserving first-seen order.
func uniqueByHash(txs []domain.Transaction) ([]domain.Transaction, int) {
	pos := make(map[string]int, len(txs))
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if i, ok := pos[t.ContentHash]; ok {
			if out[i].Status == domain.StatusSettled {
				t.Status = domain.StatusSettled
			}
			out[i] = t
			continue
		}
		pos[t.ContentHash] = len(out)
		out = append(out, t)
	}
	return out, len(txs) - len(out)
}

func loadByHash(db *gorm.DB, txs []domain.Transaction) (map[string]domain.Transaction, error) {
	existing := make(map[string]domain.Transaction, len(txs))
	hashes := make([]string, 0, len(txs))
	for _, t := range txs {
		hashes = append(hashes, t.ContentHash)
	}
	for start := 0; start < len(hashes); start += lookupChunk {
		end := start + lookupChunk
		if end > len(hashes) {
			end = len(hashes)
		}
		var found []domain.Transaction
		if err := db.Where("content_hash IN ?", hashes[start:end]).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, t := range found {
			existing[t.ContentHash] = t
		}
	}
	return existing, nil
}

// RecentRuns lists the latest sync runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.SyncRun
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
