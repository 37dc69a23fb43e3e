package reconcile

import (
	"context"

	"asset-ledger/internal/application/ingest"
	"asset-ledger/internal/application/ledger"
)

// Service runs one reconciliation: ingest, then rebuild holdings from the committed store.
type Service struct {
	Ingest *ingest.Service
	Ledger *ledger.Service
}

// Outcome pairs the ingestion summary with the holdings read after it.
type Outcome struct {
	Sync     *ingest.SyncResult `json:"sync"`
	Holdings *ledger.Result     `json:"holdings"`
}

// Reconcile syncs rows and then reconstructs holdings for f. Sync commits before it
// returns, so the reconstruction always sees the rows just written.
func (s *Service) Reconcile(ctx context.Context, rows []ingest.RawRow, source string, f ledger.Filter) (*Outcome, error) {
	res, err := s.Ingest.Sync(ctx, rows, source)
	if err != nil {
		return nil, err
	}
	holdings, err := s.Ledger.Reconstruct(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Outcome{Sync: res, Holdings: holdings}, nil
}
