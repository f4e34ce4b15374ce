package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"price_history/internal/feature/history/domain/entity"
)

// WorkFunc は1銘柄を結果に変換します。共有の可変状態に触れてはいけません。
type WorkFunc func(ctx context.Context, ticker entity.TickerIdentity) entity.CascadeOutcome

// DrainFunc は結果を入力順に1件ずつ処理します。エラーを返すと実行を止めます。
type DrainFunc func(outcome entity.CascadeOutcome) error

// Scheduler は作業項目の実行方法を決めます。どの方式でも
// drain は単一のgoroutineから items の順に呼ばれます。
type Scheduler interface {
	Run(ctx context.Context, items []entity.TickerIdentity, work WorkFunc, drain DrainFunc) error
}

// SequentialScheduler は1銘柄ずつ処理します。
type SequentialScheduler struct{}

// Run は Scheduler を実装します。
func (SequentialScheduler) Run(ctx context.Context, items []entity.TickerIdentity, work WorkFunc, drain DrainFunc) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := drain(work(ctx, item)); err != nil {
			return err
		}
	}
	return nil
}

// ParallelScheduler は最大 Workers 銘柄を並行して評価し、結果を入力順に処理します。
// メモリに保持する結果は最大 2*Workers 件です。
type ParallelScheduler struct {
	Workers int
}

// Run は Scheduler を実装します。
func (p ParallelScheduler) Run(ctx context.Context, items []entity.TickerIdentity, work WorkFunc, drain DrainFunc) error {
	workers := max(p.Workers, 1)

	results := make([]chan entity.CascadeOutcome, len(items))
	for i := range results {
		results[i] = make(chan entity.CascadeOutcome, 1)
	}

	// window は開始済みで未処理の結果数を制限する
	window := make(chan struct{}, 2*workers)
	stop := make(chan struct{})
	spawned := make(chan struct{})

	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		defer close(spawned)
		for i, item := range items {
			select {
			case window <- struct{}{}:
			case <-stop:
				return
			}
			g.Go(func() error {
				results[i] <- work(ctx, item)
				return nil
			})
		}
	}()

	var err error
	for i := range items {
		if err = ctx.Err(); err != nil {
			break
		}
		outcome := <-results[i]
		<-window
		if err = drain(outcome); err != nil {
			break
		}
	}

	close(stop)
	<-spawned
	_ = g.Wait()
	return err
}
