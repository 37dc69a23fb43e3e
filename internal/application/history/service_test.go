package history

import (
	"context"
	"testing"
	"time"

	"asset-ledger/internal/application/pricing"
	"asset-ledger/internal/domain"
	"asset-ledger/internal/infrastructure/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s", want, got.String())
}

type fixedFeed struct {
	prices map[string]decimal.Decimal
}

func (f *fixedFeed) Quotes(_ context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, t := range tickers {
		if p, ok := f.prices[t]; ok {
			out[t] = p
		}
	}
	return out, nil
}

func (f *fixedFeed) FXRate(context.Context) (decimal.Decimal, error) { return d("1300"), nil }

func TestNextPoint_Bootstrap(t *testing.T) {
	ref, index := NextPoint(nil, d("1000000"), d("1000000"))
	assertDec(t, "1000000", ref)
	assertDec(t, "100", index)
}

func TestNextPoint_FlowAdjusted(t *testing.T) {
	prev := &domain.PortfolioHistoryPoint{EvalValue: d("1000000"), InvestedPrincipal: d("1000000"), RefPrice: d("1000000")}
	ref, index := NextPoint(prev, d("1260000"), d("1200000"))
	assertDec(t, "1200000", ref)
	assertDec(t, "105", index)
}

func TestNextPoint_WithdrawalDoesNotMoveIndex(t *testing.T) {
	prev := &domain.PortfolioHistoryPoint{EvalValue: d("1100000"), InvestedPrincipal: d("1000000"), RefPrice: d("1000000")}
	ref, index := NextPoint(prev, d("990000"), d("900000"))
	assertDec(t, "909090.909091", ref)
	assertDec(t, "108.9", index.Round(1))
}

func TestNextPoint_ZeroPreviousEval(t *testing.T) {
	prev := &domain.PortfolioHistoryPoint{EvalValue: decimal.Zero, InvestedPrincipal: decimal.Zero, RefPrice: decimal.Zero}
	ref, index := NextPoint(prev, d("500"), d("400"))
	assertDec(t, "400", ref)
	assertDec(t, "125", index)

	ref, index = NextPoint(prev, d("0"), d("0"))
	assertDec(t, "0", ref)
	assertDec(t, "100", index)
}

func TestIsFinal(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	today := domain.MustDate("2024-03-04")

	assert.False(t, IsFinal(today, time.Date(2024, 3, 4, 15, 59, 0, 0, seoul), seoul, 16))
	assert.True(t, IsFinal(today, time.Date(2024, 3, 4, 16, 0, 0, 0, seoul), seoul, 16))
	assert.True(t, IsFinal(domain.MustDate("2024-03-01"), time.Date(2024, 3, 4, 9, 0, 0, 0, seoul), seoul, 16))
	assert.False(t, IsFinal(domain.MustDate("2024-03-05"), time.Date(2024, 3, 4, 20, 0, 0, 0, seoul), seoul, 16))
	// 06:30 UTC is 15:30 in Seoul.
	assert.False(t, IsFinal(today, time.Date(2024, 3, 4, 6, 30, 0, 0, time.UTC), seoul, 16))
}

type historyFixture struct {
	svc  *Service
	db   *gorm.DB
	now  time.Time
	feed *fixedFeed
}

func setupHistoryTest(t *testing.T) *historyFixture {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	f := &historyFixture{db: db, feed: &fixedFeed{prices: map[string]decimal.Decimal{}}}
	f.now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	f.svc = &Service{
		DB:               db,
		Enricher:         &pricing.Enricher{Feed: f.feed},
		DefaultPortfolio: "General",
		Location:         time.UTC,
		MarketCloseHour:  16,
		Now:              func() time.Time { return f.now },
	}
	require.NoError(t, db.Create(&domain.Account{AccountNumber: "1", Owner: "Kim", AccountName: "ISA", Portfolio: "Growth"}).Error)
	require.NoError(t, db.Create(&domain.Asset{AssetName: "Samsung", Ticker: "005930", Currency: domain.KRW, AssetClass: domain.ClassStock}).Error)
	return f
}

func (f *historyFixture) add(t *testing.T, date, owner, account, asset string, typ domain.TxType, amount, qty string) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.Transaction{
		Date:        domain.MustDate(date),
		Owner:       owner,
		Account:     account,
		Asset:       asset,
		Type:        typ,
		Amount:      d(amount),
		Quantity:    d(qty),
		Currency:    domain.KRW,
		Status:      domain.StatusSettled,
		ContentHash: date + owner + account + asset + string(typ) + amount + qty,
	}).Error)
}

func TestRecordPoint_BootstrapThenChainLink(t *testing.T) {
	f := setupHistoryTest(t)
	ctx := context.Background()

	f.add(t, "2024-03-01", "Kim", "ISA", domain.CashHomeAsset, domain.TxDeposit, "0", "1000000")
	f.add(t, "2024-03-01", "Lee", "Pension", domain.CashHomeAsset, domain.TxDeposit, "0", "50000")

	first, err := f.svc.RecordPoint(ctx, domain.MustDate("2024-03-01"))
	require.NoError(t, err)
	assert.True(t, first.IsFinal)
	require.Len(t, first.Points, 2)
	assert.Equal(t, "General", first.Points[0].PortfolioName)
	growth := first.Points[1]
	assert.Equal(t, "Growth", growth.PortfolioName)
	assertDec(t, "1000000", growth.RefPrice)
	assertDec(t, "100", growth.IndexVal)

	// Deposit 200,000 and buy shares that are now worth more than they cost.
	f.add(t, "2024-03-04", "Kim", "ISA", domain.CashHomeAsset, domain.TxDeposit, "0", "200000")
	f.add(t, "2024-03-04", "Kim", "ISA", "Samsung", domain.TxBuy, "200000", "4")
	f.add(t, "2024-03-04", "Kim", "ISA", domain.CashHomeAsset, domain.TxBuy, "200000", "0")
	f.feed.prices["005930"] = d("65000")

	second, err := f.svc.RecordPoint(ctx, domain.MustDate("2024-03-04"))
	require.NoError(t, err)
	assert.False(t, second.IsFinal)
	growth = second.Points[1]
	assertDec(t, "1260000", growth.EvalValue)
	assertDec(t, "1200000", growth.InvestedPrincipal)
	assertDec(t, "1200000", growth.RefPrice)
	assertDec(t, "105", growth.IndexVal)

	series, err := f.svc.Series(ctx, "Growth", domain.Date{}, domain.Date{})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2024-03-01", series[0].Date.String())

	assets, err := f.svc.AssetSeries(ctx, domain.MustDate("2024-03-04"))
	require.NoError(t, err)
	require.Len(t, assets, 3)
}

func TestRecordPoint_SameDayOverwrite(t *testing.T) {
	f := setupHistoryTest(t)
	ctx := context.Background()
	date := domain.MustDate("2024-03-04")

	f.add(t, "2024-03-04", "Kim", "ISA", "Samsung", domain.TxBuy, "600000", "10")
	f.feed.prices["005930"] = d("60000")
	_, err := f.svc.RecordPoint(ctx, date)
	require.NoError(t, err)

	f.feed.prices["005930"] = d("66000")
	f.now = time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	rec, err := f.svc.RecordPoint(ctx, date)
	require.NoError(t, err)
	assert.True(t, rec.IsFinal)

	var points []domain.PortfolioHistoryPoint
	require.NoError(t, f.db.Find(&points).Error)
	require.Len(t, points, 1)
	assertDec(t, "660000", points[0].EvalValue)
	// Still the first point of the portfolio, so the rerun bootstraps again.
	assertDec(t, "600000", points[0].RefPrice)
	assertDec(t, "100", points[0].IndexVal)
	assert.True(t, points[0].IsFinal)

	var assets []domain.AssetHistoryPoint
	require.NoError(t, f.db.Find(&assets).Error)
	require.Len(t, assets, 1)
	assertDec(t, "66000", assets[0].PriceNative)
}

func TestRecordPoint_IgnoresLaterTransactions(t *testing.T) {
	f := setupHistoryTest(t)
	f.add(t, "2024-03-01", "Kim", "ISA", domain.CashHomeAsset, domain.TxDeposit, "0", "1000")
	f.add(t, "2024-03-03", "Kim", "ISA", domain.CashHomeAsset, domain.TxDeposit, "0", "500")

	rec, err := f.svc.RecordPoint(context.Background(), domain.MustDate("2024-03-02"))
	require.NoError(t, err)
	require.Len(t, rec.Points, 1)
	assertDec(t, "1000", rec.Points[0].EvalValue)
}

func TestImportHistory_ReplacesAndChainLinks(t *testing.T) {
	f := setupHistoryTest(t)
	ctx := context.Background()

	_, err := f.svc.ImportHistory(ctx, []domain.PortfolioHistoryPoint{
		{Date: domain.MustDate("2023-12-01"), PortfolioName: "Old", EvalValue: d("1"), InvestedPrincipal: d("1"), RefPrice: d("1"), IndexVal: d("100")},
	})
	require.NoError(t, err)

	n, err := f.svc.ImportHistory(ctx, []domain.PortfolioHistoryPoint{
		{Date: domain.MustDate("2024-01-02"), PortfolioName: "Growth", EvalValue: d("1260000"), InvestedPrincipal: d("1200000")},
		{Date: domain.MustDate("2024-01-01"), PortfolioName: "Growth", EvalValue: d("1000000"), InvestedPrincipal: d("1000000")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var all []domain.PortfolioHistoryPoint
	require.NoError(t, f.db.Order("date").Find(&all).Error)
	require.Len(t, all, 2)
	assert.True(t, all[0].IsFinal)
	assertDec(t, "100", all[0].IndexVal)
	assertDec(t, "105", all[1].IndexVal)

	_, err = f.svc.ImportHistory(ctx, []domain.PortfolioHistoryPoint{{PortfolioName: "Growth"}})
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestSeries_RequiresPortfolio(t *testing.T) {
	f := setupHistoryTest(t)
	_, err := f.svc.Series(context.Background(), " ", domain.Date{}, domain.Date{})
	assert.ErrorIs(t, err, ErrPortfolioRequired)
}
