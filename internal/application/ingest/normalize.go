package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var numberCleaner = strings.NewReplacer(",", "", " ", "", "₩", "", "$", "", "원", "")

// ParseDecimal parses a formatted cell. Blank cells are zero.
func ParseDecimal(c Cell) (decimal.Decimal, error) {
	s := numberCleaner.Replace(c.String())
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", c.String())
	}
	return d, nil
}

// ContentHash is the stable identity of an economic event. Status and note are excluded,
// and numbers use their canonical decimal form so "1000" and "1000.0" collide.
func ContentHash(date domain.Date, owner, account, asset string, typ domain.TxType, amount, qty decimal.Decimal) string {
	key := strings.Join([]string{
		date.String(),
		strings.TrimSpace(owner),
		strings.TrimSpace(account),
		strings.TrimSpace(asset),
		string(typ),
		amount.String(),
		qty.String(),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// statusOf prefers the explicit status hint; AI drafts carry "Pending"/"Settled" in the note.
func statusOf(r RawRow) domain.Status {
	if s := r.Status.String(); s != "" {
		return domain.ParseStatus(s)
	}
	switch strings.ToLower(r.Note.String()) {
	case "pending":
		return domain.StatusPending
	}
	return domain.StatusSettled
}

func inferCurrency(asset string) domain.Currency {
	if asset == domain.CashForeignAsset {
		return domain.ForeignCurrency
	}
	return domain.HomeCurrency
}

// normalize validates one raw row and turns it into a Transaction with its content hash.
// dir may be nil when no account-number resolution is needed.
func normalize(r RawRow, dir *masterdata.Directory, now time.Time) (domain.Transaction, error) {
	date, err := domain.ParseDate(r.Date.String())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	owner, account := r.Owner.String(), r.Account.String()
	if (owner == "" || account == "") && r.AccountNumber.String() != "" && dir != nil {
		if a, ok := dir.ResolveAccount(r.AccountNumber.String()); ok {
			if owner == "" {
				owner = a.Owner
			}
			if account == "" {
				account = a.AccountName
			}
		}
	}
	if owner == "" || account == "" {
		return domain.Transaction{}, fmt.Errorf("%w: account %q", ErrUnresolvedAccount, r.AccountNumber.String())
	}

	asset := r.Asset.String()
	if asset == "" {
		return domain.Transaction{}, fmt.Errorf("%w: blank asset", ErrMalformedRow)
	}

	typ, ok := domain.ParseTxType(r.Type.String())
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRow, r.Type.String())
	}

	amount, err := ParseDecimal(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: amount: %v", ErrMalformedRow, err)
	}
	qty, err := ParseDecimal(r.Quantity)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: quantity: %v", ErrMalformedRow, err)
	}
	price, err := ParseDecimal(r.Price)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: price: %v", ErrMalformedRow, err)
	}
	fee, err := ParseDecimal(r.Fee)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: fee: %v", ErrMalformedRow, err)
	}

	cur, ok := domain.ParseCurrency(r.Currency.String())
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: unknown currency %q", ErrMalformedRow, r.Currency.String())
	}
	if cur == "" {
		cur = inferCurrency(asset)
	}

	source, _ := json.Marshal(r)

	return domain.Transaction{
		Date:        date,
		Owner:       owner,
		Account:     account,
		Asset:       asset,
		Type:        typ,
		Amount:      amount,
		Quantity:    qty,
		Price:       price,
		Fee:         fee,
		Currency:    cur,
		Status:      statusOf(r),
		Note:        r.Note.String(),
		ContentHash: ContentHash(date, owner, account, asset, typ, amount, qty),
		SourceRow:   r.SourceRow,
		Source:      datatypes.JSON(source),
		SyncedAt:    now,
	}, nil
}
