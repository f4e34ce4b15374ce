package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"gorm.io/gorm"

	"price_history/internal/feature/history/adapters"
	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
	"price_history/internal/platform/config"
	"price_history/internal/platform/db"
)

// universeCmd stores the ticker universe used by assemble.
type universeCmd struct {
	current string
	changes string
	ledger  string
	list    bool
	show    string
}

func (*universeCmd) Name() string { return "universe" }
func (*universeCmd) Synopsis() string {
	return "import or list the ticker universe"
}
func (*universeCmd) Usage() string {
	return `history universe -current members.csv -changes changes.csv
history universe -ledger ticker_dates.csv
history universe -list
history universe -changes changes.csv -show BJS,LEH
`
}
func (c *universeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.current, "current", "", "current constituents CSV (Symbol column)")
	f.StringVar(&c.changes, "changes", "", "membership change CSV (Date, Added_Ticker, Removed_Ticker)")
	f.StringVar(&c.ledger, "ledger", "", "derived ticker,start_date,end_date CSV")
	f.BoolVar(&c.list, "list", false, "print the stored universe")
	f.StringVar(&c.show, "show", "", "comma-separated tickers whose removal to describe from -changes")
}

func (c *universeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	opts := universeOptions{current: c.current, changes: c.changes, ledger: c.ledger, list: c.list, show: c.show}
	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := runUniverse(ctx, cfg, logger, opts, os.Stdout); err != nil {
		logger.Error("universe failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type universeOptions struct {
	current string
	changes string
	ledger  string
	list    bool
	show    string
}

func (o universeOptions) validate() error {
	if o.show != "" {
		switch {
		case o.changes == "":
			return fmt.Errorf("-show needs -changes")
		case o.current != "" || o.ledger != "" || o.list:
			return fmt.Errorf("-show cannot be combined with -current, -ledger or -list")
		}
		return nil
	}
	derive := o.current != "" || o.changes != ""
	switch {
	case derive && o.ledger != "":
		return fmt.Errorf("-ledger cannot be combined with -current/-changes")
	case derive && (o.current == "" || o.changes == ""):
		return fmt.Errorf("-current and -changes must be given together")
	case !derive && o.ledger == "" && !o.list:
		return fmt.Errorf("nothing to do")
	}
	return nil
}

func runUniverse(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts universeOptions, w io.Writer) error {
	if opts.show != "" {
		changes, err := adapters.OpenCSV(opts.changes, adapters.ReadChanges)
		if err != nil {
			return err
		}
		printRemovals(w, splitSymbols(opts.show), changes)
		return nil
	}

	gdb, err := db.Open(cfg.DBConfig())
	if err != nil {
		return err
	}
	defer closeDB(gdb, logger)

	uc := usecase.NewUniverseUsecase(adapters.NewUniverseRepository(gdb))

	switch {
	case opts.ledger != "":
		tickers, err := adapters.OpenCSV(opts.ledger, adapters.ReadTickerDates)
		if err != nil {
			return err
		}
		if err := uc.Import(ctx, tickers); err != nil {
			return err
		}
		logger.Info("universe imported", "tickers", len(tickers), "source", opts.ledger)
	case opts.current != "":
		current, err := adapters.OpenCSV(opts.current, adapters.ReadMembers)
		if err != nil {
			return err
		}
		changes, err := adapters.OpenCSV(opts.changes, adapters.ReadChanges)
		if err != nil {
			return err
		}
		tickers, err := uc.ImportLedger(ctx, current, changes)
		if err != nil {
			return err
		}
		logger.Info("universe derived", "tickers", len(tickers), "current", len(current), "changes", len(changes))
	}

	if !opts.list {
		return nil
	}
	tickers, err := uc.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range tickers {
		fmt.Fprintf(w, "%s,%s,%s\n", t.Symbol, formatDay(t.Active.Start), formatDay(t.Active.End))
	}
	return nil
}

// printRemovals describes, for each symbol, the company, membership period and removal reason.
func printRemovals(w io.Writer, symbols []string, changes []usecase.MembershipChange) {
	for _, s := range symbols {
		fmt.Fprintln(w, s)
		r, ok := usecase.FindRemoval(s, changes)
		if !ok {
			fmt.Fprintln(w, "  no removal in ledger")
			continue
		}
		added := formatDay(r.Added)
		if added == "" {
			added = "unknown"
		}
		fmt.Fprintf(w, "  company: %s\n", r.Company)
		fmt.Fprintf(w, "  period:  %s to %s\n", added, r.Removed.Format(entity.DateLayout))
		fmt.Fprintf(w, "  reason:  %s\n", r.Reason)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(entity.DateLayout)
}

func closeDB(gdb *gorm.DB, logger *slog.Logger) {
	if err := db.Close(gdb); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}
