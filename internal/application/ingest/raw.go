package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Cell is a spreadsheet cell value. Sheets and AI output send numbers either as JSON
// numbers or as formatted strings ("1,000", "₩1000"); Cell keeps the literal text.
type Cell string

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Cell(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Cell(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*c = Cell(fmt.Sprint(b))
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into a cell", string(data))
}

func (c Cell) String() string { return strings.TrimSpace(string(c)) }

// RawRow is one transaction as it arrives from the sheet or from a reviewed AI draft.
type RawRow struct {
	Date          Cell `json:"date"`
	Owner         Cell `json:"owner"`
	Account       Cell `json:"account"`
	Asset         Cell `json:"asset"`
	Type          Cell `json:"type"`
	Amount        Cell `json:"amount"`
	Quantity      Cell `json:"quantity"`
	Price         Cell `json:"price,omitempty"`
	Fee           Cell `json:"fee,omitempty"`
	Currency      Cell `json:"currency"`
	Note          Cell `json:"note"`
	AccountNumber Cell `json:"account_number,omitempty"`
	Status        Cell `json:"status,omitempty"`
	SourceRow     int  `json:"source_row,omitempty"`
}

// FieldMapping names the sheet header that feeds each RawRow field. Required headers
// must be present or ParseSheet fails; there is no fuzzy column matching.
type FieldMapping struct {
	Version       string
	Date          string
	Owner         string
	Account       string
	Asset         string
	Type          string
	Amount        string
	Quantity      string
	Price         string
	Fee           string
	Currency      string
	Note          string
	AccountNumber string
	Status        string
}

// SheetMappingV1 is the layout of the transaction journal tab ("00_거래일지").
var SheetMappingV1 = FieldMapping{
	Version:       "v1",
	Date:          "날짜",
	Owner:         "소유자",
	Account:       "계좌",
	Asset:         "종목",
	Type:          "거래구분",
	Amount:        "거래금액",
	Quantity:      "수량",
	Price:         "단가",
	Fee:           "수수료",
	Currency:      "통화",
	Note:          "비고",
	AccountNumber: "계좌번호",
	Status:        "상태",
}

func (m FieldMapping) required() map[string]string {
	return map[string]string{
		"date":     m.Date,
		"owner":    m.Owner,
		"account":  m.Account,
		"asset":    m.Asset,
		"type":     m.Type,
		"amount":   m.Amount,
		"quantity": m.Quantity,
	}
}

// ParseSheet converts a header row plus records into RawRows using mapping. Source row
// numbers are 1-based sheet rows, the header being row 1.
func ParseSheet(header []string, records [][]string, mapping FieldMapping) ([]RawRow, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for field, col := range mapping.required() {
		if col == "" {
			return nil, fmt.Errorf("%w: mapping %s has no column for %s", ErrMissingField, mapping.Version, field)
		}
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: column %q (%s)", ErrMissingField, col, field)
		}
	}

	get := func(rec []string, col string) Cell {
		if col == "" {
			return ""
		}
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return Cell(rec[i])
	}

	rows := make([]RawRow, 0, len(records))
	for n, rec := range records {
		rows = append(rows, RawRow{
			Date:          get(rec, mapping.Date),
			Owner:         get(rec, mapping.Owner),
			Account:       get(rec, mapping.Account),
			Asset:         get(rec, mapping.Asset),
			Type:          get(rec, mapping.Type),
			Amount:        get(rec, mapping.Amount),
			Quantity:      get(rec, mapping.Quantity),
			Price:         get(rec, mapping.Price),
			Fee:           get(rec, mapping.Fee),
			Currency:      get(rec, mapping.Currency),
			Note:          get(rec, mapping.Note),
			AccountNumber: get(rec, mapping.AccountNumber),
			Status:        get(rec, mapping.Status),
			SourceRow:     n + 2,
		})
	}
	return rows, nil
}
