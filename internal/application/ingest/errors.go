package ingest

import "errors"

var (
	ErrMissingField      = errors.New("ingest: required field missing")
	ErrMalformedRow      = errors.New("ingest: malformed row")
	ErrUnresolvedAccount = errors.New("ingest: owner/account could not be resolved")
	ErrEmptyBatch        = errors.New("ingest: no rows to sync")
)

// RowError describes a row that was rejected during ingestion. The rest of the batch
// is still processed.
type RowError struct {
	Index     int    `json:"index"`
	SourceRow int    `json:"source_row,omitempty"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

func (e RowError) Error() string { return e.Reason }

func (e RowError) Unwrap() error { return e.Err }
