package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"price_history/internal/platform/cache"
	infraredis "price_history/internal/platform/redis"
)

// cacheCmd drops cached live responses so the next assemble refetches them.
type cacheCmd struct {
	symbol string
}

func (*cacheCmd) Name() string     { return "purge-cache" }
func (*cacheCmd) Synopsis() string { return "delete cached live API responses" }
func (*cacheCmd) Usage() string    { return "history purge-cache [-symbol BRK-B]\n" }
func (c *cacheCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "live symbol to purge, all when empty")
}

func (c *cacheCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	rdb, err := infraredis.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		return subcommands.ExitFailure
	}
	if rdb == nil {
		fmt.Fprintln(os.Stderr, "REDIS_HOST is not set")
		return subcommands.ExitUsageError
	}
	defer func() { _ = rdb.Close() }()

	if err := cache.NewCachingLiveRepository(rdb, cfg.CacheTTL, nil, "").Purge(ctx, c.symbol); err != nil {
		logger.Error("purge failed", "error", err)
		return subcommands.ExitFailure
	}
	logger.Info("cache purged", "symbol", c.symbol)
	return subcommands.ExitSuccess
}
