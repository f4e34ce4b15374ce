package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/subcommands"

	"price_history/internal/feature/history/adapters"
	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
	"price_history/internal/platform/cache"
	"price_history/internal/platform/config"
	"price_history/internal/platform/db"
	"price_history/internal/platform/externalapi/twelvedata"
	httpclient "price_history/internal/platform/http"
	"price_history/internal/platform/metrics"
	infraredis "price_history/internal/platform/redis"
	"price_history/internal/shared/ratelimiter"
)

// assembleCmd builds the consolidated price file for the stored universe.
type assembleCmd struct {
	output  string
	workers int
}

func (*assembleCmd) Name() string { return "assemble" }
func (*assembleCmd) Synopsis() string {
	return "assemble daily price histories for every ticker of the universe"
}
func (*assembleCmd) Usage() string {
	return "history assemble [-o output.csv] [-workers n]\n"
}
func (c *assembleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "output file (overrides OUTPUT_PATH)")
	f.IntVar(&c.workers, "workers", 0, "concurrent tickers, 1 runs sequentially (overrides WORKERS)")
}

func (c *assembleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.output != "" {
		cfg.OutputPath = c.output
	}
	if c.workers > 0 {
		cfg.Workers = c.workers
	}

	if err := runAssemble(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("assemble failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// runAssemble wires the sources, runs the cascade over the universe and prints the report to w.
func runAssemble(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	started := time.Now()

	catalog, err := adapters.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	aliases, err := catalog.AliasMap()
	if err != nil {
		return err
	}

	gdb, err := db.Open(cfg.DBConfig())
	if err != nil {
		return err
	}
	defer closeDB(gdb, logger)
	universe, err := usecase.NewUniverseUsecase(adapters.NewUniverseRepository(gdb)).List(ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyUniverse) {
			return fmt.Errorf("%w: run `history universe` first", err)
		}
		return err
	}

	local, err := loadLocal(cfg, catalog)
	if err != nil {
		return err
	}
	bulk, err := loadBulk(cfg)
	if err != nil {
		return err
	}
	live, closeLive := newLive(ctx, cfg, logger)
	defer closeLive()

	selector := usecase.NewSelector(aliases, local, bulk, live,
		usecase.WithEpoch(cfg.Epoch()),
		usecase.WithLiveTimeout(cfg.LiveTimeout),
		usecase.WithLogger(logger),
	)

	sink, err := adapters.CreateCSVSink(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("failed to close output", "path", cfg.OutputPath, "error", err)
		}
	}()

	var scheduler usecase.Scheduler = usecase.SequentialScheduler{}
	if cfg.Workers > 1 {
		scheduler = usecase.ParallelScheduler{Workers: cfg.Workers}
	}

	recorder := metrics.NewRecorder()
	orchestrator := usecase.NewOrchestrator(selector, sink, scheduler, recorder, logger)

	report, runErr := orchestrator.Run(ctx, universe)

	recorder.ObserveRun(started, time.Now())
	if cfg.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("failed to export metrics", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	printReport(w, report, cfg.OutputPath)
	return runErr
}

func loadLocal(cfg *config.Config, catalog adapters.Catalog) (*adapters.SeriesTable, error) {
	if cfg.LocalDir == "" || len(catalog.LocalFiles) == 0 {
		slog.Info("local archive not configured")
		return adapters.NewSeriesTable(entity.SourceLocal, nil), nil
	}
	return adapters.LoadLocalArchive(cfg.LocalDir, catalog.LocalFiles)
}

func loadBulk(cfg *config.Config) (*adapters.SeriesTable, error) {
	if cfg.BulkPath == "" {
		slog.Info("bulk dump not configured")
		return adapters.NewSeriesTable(entity.SourceBulk, nil), nil
	}
	return adapters.LoadBulkFile(cfg.BulkPath)
}

// newLive returns the live source, or nil when no API key is configured.
// The returned func releases the cache connection.
func newLive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (usecase.LiveRepository, func()) {
	if !cfg.LiveEnabled() {
		logger.Warn("TWELVE_DATA_API_KEY is not set, live source disabled")
		return nil, func() {}
	}

	client := httpclient.NewHTTPClient(cfg.TwelveData.Timeout, cfg.Workers)
	limiter := ratelimiter.PerMinute(cfg.LiveRatePerMinute)
	market := twelvedata.NewTwelveDataMarket(cfg.TwelveDataConfig(), client, limiter)

	rdb, err := infraredis.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		logger.Warn("Redis unavailable. Running without cache.", "error", err)
		rdb = nil
	}
	closeFn := func() {}
	if rdb != nil {
		closeFn = func() {
			if err := rdb.Close(); err != nil {
				logger.Error("failed to close Redis client", "error", err)
			}
		}
	}

	// wrap with the Redis cache
	return cache.NewCachingLiveRepository(rdb, cfg.CacheTTL, market, ""), closeFn
}

func printReport(w io.Writer, r usecase.Report, output string) {
	fmt.Fprintf(w, "wrote %d rows for %d of %d tickers to %s\n", r.RowsWritten, r.Succeeded, r.Universe, output)
	for _, src := range entity.SourceKinds {
		fmt.Fprintf(w, "  %-5s %d\n", src, r.BySource[src])
	}
	if len(r.Failed) == 0 {
		return
	}
	fmt.Fprintf(w, "failed (%d):\n", len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %s: %v\n", f.Symbol, f.Reason)
	}
}
