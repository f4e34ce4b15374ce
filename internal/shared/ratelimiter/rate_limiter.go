// Package ratelimiter は利用回数に上限のある外部API呼び出しの間隔を調整します。
package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterは、API呼び出しなどの操作の頻度を制限します。
// 複数のgoroutineから同時に使用できます。
type RateLimiter struct {
	limiter  *rate.Limiter
	limit    int // interval あたりの上限
	interval time.Duration
}

// NewRateLimiterは interval あたり limit 回まで許可するRateLimiterを生成します。
// limit が0以下の場合は制限しません。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 || interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := interval / time.Duration(limit)
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Every(every), limit),
		limit:    limit,
		interval: interval,
	}
}

// PerMinute は NewRateLimiter(limit, time.Minute) の省略形です。
func PerMinute(limit int) *RateLimiter {
	return NewRateLimiter(limit, time.Minute)
}

// Waitはトークンが得られるまで待機します。ctxがキャンセルされた場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	r := rl.limiter.Reserve()
	if !r.OK() {
		return rl.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	slog.Debug("rate limit reached, waiting", "limit", rl.limit, "interval", rl.interval, "delay", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
