package ledger

import (
	"testing"

	"asset-ledger/internal/application/masterdata"
	"asset-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(date, asset string, typ domain.TxType, amount, qty string, cur domain.Currency) domain.Transaction {
	t := domain.Transaction{
		Owner:    "Kim",
		Account:  "ISA",
		Asset:    asset,
		Type:     typ,
		Amount:   d(amount),
		Quantity: d(qty),
		Currency: cur,
		Status:   domain.StatusSettled,
	}
	if date != "" {
		t.Date = domain.MustDate(date)
	}
	return t
}

func key(asset string) domain.PositionKey {
	return domain.PositionKey{Owner: "Kim", Account: "ISA", Asset: asset}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msg ...interface{}) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s %v", want, got.String(), msg)
}

func TestReconstruct_CashBalanceIdentity(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("2024-01-02", domain.CashHomeAsset, domain.TxDeposit, "0", "1000000", domain.KRW),
		tx("2024-01-05", domain.CashHomeAsset, domain.TxWithdrawal, "0", "300000", domain.KRW),
	}, nil)

	p, ok := res.ByKey()[key(domain.CashHomeAsset)]
	require.True(t, ok)
	assertDec(t, "700000", p.Quantity)
	assertDec(t, "700000", p.BookValue)
	assert.Equal(t, domain.ClassCash, p.AssetClass)
	assert.Equal(t, "2024-01-05", p.LastTransactionDate.String())
}

func TestReconstruct_ExchangeLegs(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("2024-01-02", domain.CashHomeAsset, domain.TxDeposit, "0", "2000000", domain.KRW),
		// 1,300,000 KRW converted into 1,000 USD: the home balance pays, the foreign balance receives.
		tx("2024-01-03", domain.CashHomeAsset, domain.TxExchange, "1300000", "1000", domain.USD),
		tx("2024-01-03", domain.CashForeignAsset, domain.TxExchange, "1300000", "1000", domain.USD),
		tx("2024-01-04", domain.CashForeignAsset, domain.TxBuy, "400", "2", domain.USD),
		tx("2024-01-04", domain.CashForeignAsset, domain.TxDividend, "10", "0", domain.USD),
		tx("2024-01-04", domain.CashForeignAsset, domain.TxBuy, "50000", "1", domain.KRW),
	}, nil)
	byKey := res.ByKey()

	assertDec(t, "700000", byKey[key(domain.CashHomeAsset)].Quantity)
	assertDec(t, "610", byKey[key(domain.CashForeignAsset)].Quantity)
	assertDec(t, "610", byKey[key(domain.CashForeignAsset)].BookValue)
	assert.Equal(t, domain.USD, byKey[key(domain.CashForeignAsset)].Currency)
}

func TestReconstruct_HomeCashTradesFollowCurrency(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("2024-01-02", domain.CashHomeAsset, domain.TxDeposit, "0", "1000000", domain.KRW),
		tx("2024-01-03", domain.CashHomeAsset, domain.TxBuy, "500000", "0", domain.KRW),
		tx("2024-01-04", domain.CashHomeAsset, domain.TxSell, "120000", "0", domain.KRW),
		tx("2024-01-05", domain.CashHomeAsset, domain.TxDividend, "5000", "0", domain.KRW),
		tx("2024-01-05", domain.CashHomeAsset, domain.TxInterest, "100", "0", domain.KRW),
		tx("2024-01-06", domain.CashHomeAsset, domain.TxSell, "999", "0", domain.USD),
	}, nil)
	assertDec(t, "625100", res.ByKey()[key(domain.CashHomeAsset)].Quantity)
}

func TestReconstruct_SecurityRules(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("2024-01-02", "Samsung", domain.TxBuy, "700000", "10", domain.KRW),
		tx("2024-01-03", "Samsung", domain.TxSell, "280000", "4", domain.KRW),
		tx("2024-01-04", "Samsung", domain.TxRealizedGainAdj, "20000", "0", domain.KRW),
		tx("2024-01-05", "Samsung", domain.TxDividend, "3000", "0", domain.KRW),
		tx("2024-01-06", "Samsung", domain.TxDividendTax, "-400", "0", domain.KRW),
		tx("2024-01-07", "Samsung", domain.TxDeposit, "1", "1", domain.KRW),
	}, nil)
	p := res.ByKey()[key("Samsung")]

	assertDec(t, "6", p.Quantity)
	assertDec(t, "440000", p.BookValue)
	assertDec(t, "2600", p.Dividend)
	assertDec(t, "20000", p.Realized)
	assert.Equal(t, 0, res.Skipped)
	assertDec(t, "73333.33", p.AvgPrice().Round(2))
}

func TestReconstruct_UnlistedTracksQuantity(t *testing.T) {
	dir := masterdata.NewDirectory(nil, []domain.Asset{{AssetName: "Term Deposit", AssetClass: domain.ClassUnlisted, Currency: domain.KRW}})
	res := Reconstruct(
		[]domain.BaselineSnapshot{{Owner: "Kim", Account: "ISA", Asset: "Term Deposit", Quantity: d("1000000"), BookValue: d("999")}},
		[]domain.Transaction{
			tx("2024-01-02", "Term Deposit", domain.TxBuy, "500000", "500000", domain.KRW),
			tx("2024-01-03", "Term Deposit", domain.TxRealizedGainAdj, "12000", "0", domain.KRW),
		}, dir)
	p := res.ByKey()[key("Term Deposit")]

	assert.Equal(t, domain.ClassUnlisted, p.AssetClass)
	assertDec(t, "1500000", p.Quantity)
	assertDec(t, "1500000", p.BookValue)
	assertDec(t, "12000", p.Realized)
}

func TestReconstruct_BaselineUnion(t *testing.T) {
	dir := masterdata.NewDirectory(nil, []domain.Asset{{AssetName: "Apple", Ticker: "AAPL", Currency: domain.USD}})
	baseline := []domain.BaselineSnapshot{
		{Owner: "Kim", Account: "ISA", Asset: "Apple", Quantity: d("5"), BookValue: d("750"), Dividend: d("12"), Realized: d("30")},
		{Owner: "Kim", Account: "ISA", Asset: domain.CashHomeAsset, Quantity: d("50000"), BookValue: d("1")},
		{Owner: "Kim", Account: "ISA", Asset: "Tesla", Ticker: "TSLA", Currency: domain.USD, Quantity: d("1"), BookValue: d("200")},
	}
	res := Reconstruct(baseline, []domain.Transaction{
		tx("2024-01-02", "Apple", domain.TxBuy, "300", "2", domain.USD),
	}, dir)
	byKey := res.ByKey()

	apple := byKey[key("Apple")]
	assertDec(t, "7", apple.Quantity)
	assertDec(t, "1050", apple.BookValue)
	assertDec(t, "12", apple.Dividend)
	assertDec(t, "30", apple.Realized)
	assert.Equal(t, "AAPL", apple.Ticker)

	cash := byKey[key(domain.CashHomeAsset)]
	assertDec(t, "50000", cash.BookValue)

	tesla := byKey[key("Tesla")]
	assert.Equal(t, "TSLA", tesla.Ticker)
	assert.Equal(t, domain.USD, tesla.Currency)
}

func TestReconstruct_SkipsMalformedRows(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("", "Samsung", domain.TxBuy, "100", "1", domain.KRW),
		tx("2024-01-02", "Samsung", domain.TxType("Gift"), "100", "1", domain.KRW),
		tx("2024-01-02", "Samsung", domain.TxBuy, "100", "1", domain.KRW),
	}, nil)

	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Positions, 1)
	assertDec(t, "1", res.Positions[0].Quantity)
}

func TestReconstruct_KeepsDivestedAndNegativePositions(t *testing.T) {
	res := Reconstruct(nil, []domain.Transaction{
		tx("2024-01-02", "Samsung", domain.TxBuy, "100", "1", domain.KRW),
		tx("2024-01-03", "Samsung", domain.TxSell, "90", "1", domain.KRW),
		tx("2024-01-03", "Kakao", domain.TxSell, "50", "2", domain.KRW),
	}, nil)
	byKey := res.ByKey()

	assert.True(t, byKey[key("Samsung")].Quantity.IsZero())
	assertDec(t, "10", byKey[key("Samsung")].BookValue)
	assertDec(t, "-2", byKey[key("Kakao")].Quantity)
}

func TestReconstruct_IsPure(t *testing.T) {
	baseline := []domain.BaselineSnapshot{{Owner: "Lee", Account: "Pension", Asset: "Apple", Quantity: d("3"), BookValue: d("450")}}
	txs := []domain.Transaction{
		tx("2024-01-02", "Samsung", domain.TxBuy, "100", "1", domain.KRW),
		tx("2024-01-02", domain.CashHomeAsset, domain.TxDeposit, "0", "1000", domain.KRW),
		tx("2024-01-03", "Apple", domain.TxBuy, "300", "2", domain.USD),
	}
	first := Reconstruct(baseline, txs, nil)
	second := Reconstruct(baseline, txs, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, "Kim", first.Positions[0].Owner)
	assert.Equal(t, "Lee", first.Positions[len(first.Positions)-1].Owner)
}
