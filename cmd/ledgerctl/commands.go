package main

import (
	"context"
	"flag"

	"asset-ledger/bootstrap"
	"asset-ledger/internal/application/ledger"
	"asset-ledger/internal/domain"

	"github.com/google/subcommands"
)

type syncCmd struct {
	file   string
	source string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "ingest journal rows into the transaction store" }
func (*syncCmd) Usage() string {
	return `ledgerctl sync -f <rows.json|sheet.csv> [-source <name>]

  Deduplicates the rows by content hash and inserts the new ones. Pending rows that
  arrive again as settled are promoted. Prints the sync summary.
`
}

func (p *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.file, "f", "", "JSON array of rows, a CSV export of the journal tab, or - for stdin.")
	f.StringVar(&p.source, "source", "cli", "Source label recorded on the sync run.")
}

func (p *syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		rows, err := readRows(p.file)
		if err != nil {
			return err
		}
		res, err := c.Ingest.Sync(ctx, rows, p.source)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type reviewCmd struct {
	file string
}

func (*reviewCmd) Name() string     { return "review" }
func (*reviewCmd) Synopsis() string { return "flag likely duplicates among candidate rows without writing" }
func (*reviewCmd) Usage() string {
	return `ledgerctl review -f <candidates.json>
`
}

func (p *reviewCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.file, "f", "", "JSON array of candidate rows, or - for stdin.")
}

func (p *reviewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		rows, err := readRows(p.file)
		if err != nil {
			return err
		}
		reviewed, err := c.Ingest.Review(ctx, rows)
		if err != nil {
			return err
		}
		return printJSON(reviewed)
	})
}

type runsCmd struct {
	limit int
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list recent sync runs" }
func (*runsCmd) Usage() string    { return "ledgerctl runs [-n <limit>]\n" }

func (p *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&p.limit, "n", 10, "Number of runs to list.")
}

func (p *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		runs, err := c.Ingest.RecentRuns(ctx, p.limit)
		if err != nil {
			return err
		}
		return printJSON(runs)
	})
}

type holdingsCmd struct {
	owner   string
	account string
	until   string
	priced  bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "reconstruct holdings from the baseline and the transaction log" }
func (*holdingsCmd) Usage() string {
	return `ledgerctl holdings [-owner <name>] [-account <name>] [-until <date>] [-priced]
`
}

func (p *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.owner, "owner", "", "Only this owner.")
	f.StringVar(&p.account, "account", "", "Only this account.")
	f.StringVar(&p.until, "until", "", "Ignore transactions after this date (YYYY-MM-DD).")
	f.BoolVar(&p.priced, "priced", false, "Value positions with current quotes.")
}

func (p *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		filter := ledger.Filter{Owner: p.owner, Account: p.account}
		if p.until != "" {
			d, err := domain.ParseDate(p.until)
			if err != nil {
				return err
			}
			filter.Until = d
		}
		res, err := c.Ledger.Reconstruct(ctx, filter)
		if err != nil {
			return err
		}
		if !p.priced {
			return printJSON(res)
		}
		return printJSON(c.Enricher.Enrich(ctx, res.Positions))
	})
}

type snapshotCmd struct {
	date string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record the portfolio index point for a date" }
func (*snapshotCmd) Usage() string {
	return `ledgerctl snapshot [-d <date>]

  Values the holdings, groups them by portfolio and upserts one index point per
  portfolio plus the per-asset drill-down. Defaults to today.
`
}

func (p *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.date, "d", "", "Date to record (YYYY-MM-DD). Defaults to today.")
}

func (p *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		var asOf domain.Date
		if p.date != "" {
			d, err := domain.ParseDate(p.date)
			if err != nil {
				return err
			}
			asOf = d
		}
		rec, err := c.History.RecordPoint(ctx, asOf)
		if err != nil {
			return err
		}
		return printJSON(rec)
	})
}

type seriesCmd struct {
	portfolio string
	from      string
	to        string
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "print a portfolio's index series" }
func (*seriesCmd) Usage() string {
	return "ledgerctl series -p <portfolio> [-from <date>] [-to <date>]\n"
}

func (p *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.portfolio, "p", "", "Portfolio name.")
	f.StringVar(&p.from, "from", "", "First date (inclusive).")
	f.StringVar(&p.to, "to", "", "Last date (inclusive).")
}

func (p *seriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		var from, to domain.Date
		var err error
		if p.from != "" {
			if from, err = domain.ParseDate(p.from); err != nil {
				return err
			}
		}
		if p.to != "" {
			if to, err = domain.ParseDate(p.to); err != nil {
				return err
			}
		}
		points, err := c.History.Series(ctx, p.portfolio, from, to)
		if err != nil {
			return err
		}
		return printJSON(points)
	})
}

type importHistoryCmd struct {
	file string
}

func (*importHistoryCmd) Name() string     { return "import-history" }
func (*importHistoryCmd) Synopsis() string { return "replace the portfolio history with imported points" }
func (*importHistoryCmd) Usage() string {
	return `ledgerctl import-history -f <points.json>

  Wipes the portfolio history table and loads the points as final. Points without
  a ref_price are chain-linked in date order.
`
}

func (p *importHistoryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.file, "f", "", "JSON array of history points, or - for stdin.")
}

func (p *importHistoryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		var points []domain.PortfolioHistoryPoint
		if err := readJSON(p.file, &points); err != nil {
			return err
		}
		n, err := c.History.ImportHistory(ctx, points)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"points": n})
	})
}

type baselineCmd struct {
	file string
}

func (*baselineCmd) Name() string     { return "baseline" }
func (*baselineCmd) Synopsis() string { return "replace the baseline snapshot" }
func (*baselineCmd) Usage() string {
	return "ledgerctl baseline -f <baseline.json>\n"
}

func (p *baselineCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.file, "f", "", "JSON array of baseline rows, or - for stdin.")
}

func (p *baselineCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(c *bootstrap.Container) error {
		var rows []domain.BaselineSnapshot
		if err := readJSON(p.file, &rows); err != nil {
			return err
		}
		n, err := c.Ledger.ReplaceBaseline(ctx, rows)
		if err != nil {
			return err
		}
		return printJSON(map[string]int{"rows": n})
	})
}

type masterCmd struct {
	accounts string
	assets   string
}

func (*masterCmd) Name() string     { return "master" }
func (*masterCmd) Synopsis() string { return "upsert the account and asset masters" }
func (*masterCmd) Usage() string {
	return "ledgerctl master [-accounts <accounts.json>] [-assets <assets.json>]\n"
}

func (p *masterCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.accounts, "accounts", "", "JSON array of account master rows.")
	f.StringVar(&p.assets, "assets", "", "JSON array of asset master rows.")
}

func (p *masterCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.accounts == "" && p.assets == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(func(c *bootstrap.Container) error {
		out := map[string]int{}
		if p.accounts != "" {
			var rows []domain.Account
			if err := readJSON(p.accounts, &rows); err != nil {
				return err
			}
			n, err := c.Masterdata.UpsertAccounts(ctx, rows)
			if err != nil {
				return err
			}
			out["accounts"] = n
		}
		if p.assets != "" {
			var rows []domain.Asset
			if err := readJSON(p.assets, &rows); err != nil {
				return err
			}
			n, err := c.Masterdata.UpsertAssets(ctx, rows)
			if err != nil {
				return err
			}
			out["assets"] = n
		}
		return printJSON(out)
	})
}
