package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
)

// Sink は1銘柄ずつ確定した行を受け取ります。
type Sink interface {
	Emit(symbol string, series entity.PriceSeries) error
}

// Recorder は銘柄ごとの結果を観測します（メトリクスなど）。呼び出しは直列化されます。
type Recorder interface {
	ObserveOutcome(outcome entity.CascadeOutcome, written bool)
}

// Orchestrator はユニバースをソート順に処理し、銘柄ごとにカスケードを実行して
// 解決できた系列を Sink に書き出します。
type Orchestrator struct {
	selector  CascadeSelector
	sink      Sink
	scheduler Scheduler
	recorder  Recorder
	logger    *slog.Logger
}

// NewOrchestrator は Orchestrator を生成します。scheduler が nil なら逐次実行します。recorder は nil でも構いません。
func NewOrchestrator(selector CascadeSelector, sink Sink, scheduler Scheduler, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if scheduler == nil {
		scheduler = SequentialScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		selector:  selector,
		sink:      sink,
		scheduler: scheduler,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run はユニバース全体を処理します。銘柄ごとの失敗はレポートに集約します。
// 途中で終了するのは致命的な書き込みエラーかキャンセルのときだけで、その場合も途中までのレポートを返します。
func (o *Orchestrator) Run(ctx context.Context, universe []entity.TickerIdentity) (Report, error) {
	items, invalid := sortedUniverse(universe)
	report := newReport(len(items) + invalid)
	for range invalid {
		report.Failed = append(report.Failed, FailedTicker{Reason: domain.ErrInvalidTicker})
	}
	if invalid > 0 {
		o.logger.Warn("universe has entries without a symbol", "count", invalid)
	}

	o.logger.Info("starting cascade", "tickers", len(items))

	drain := func(outcome entity.CascadeOutcome) error {
		symbol := outcome.Ticker.Symbol
		if !outcome.Resolved() {
			reason := outcome.Err
			if reason == nil {
				reason = fmt.Errorf("%s: %w", symbol, domain.ErrTickerUnresolved)
			}
			report.Failed = append(report.Failed, FailedTicker{Symbol: symbol, Reason: reason})
			o.observe(outcome, false)
			return nil
		}

		if err := o.sink.Emit(outcome.Alias, outcome.Series); err != nil {
			o.observe(outcome, false)
			if errors.Is(err, domain.ErrSinkFatal) {
				o.logger.Error("output is unusable, aborting run", "ticker", symbol, "error", err)
				return err
			}
			// 1つの銘柄で書き込みに失敗しても処理を止めずに次の銘柄へ進む
			o.logger.Error("failed to write ticker", "ticker", symbol, "error", err)
			report.Failed = append(report.Failed, FailedTicker{Symbol: symbol, Reason: err})
			return nil
		}

		report.Succeeded++
		report.RowsWritten += len(outcome.Series)
		for _, src := range outcome.Sources {
			report.BySource[src]++
		}
		o.observe(outcome, true)
		return nil
	}

	err := o.scheduler.Run(ctx, items, o.selector.Select, drain)

	o.logger.Info("cascade finished",
		"tickers", report.Universe,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"rows", report.RowsWritten,
	)
	return report, err
}

func (o *Orchestrator) observe(outcome entity.CascadeOutcome, written bool) {
	if o.recorder != nil {
		o.recorder.ObserveOutcome(outcome, written)
	}
}

// sortedUniverse はシンボルの重複を除き辞書順に並べたユニバースと、シンボルが空のエントリ数を返します。
func sortedUniverse(universe []entity.TickerIdentity) ([]entity.TickerIdentity, int) {
	items := make([]entity.TickerIdentity, 0, len(universe))
	seen := make(map[string]struct{}, len(universe))
	invalid := 0
	for _, t := range universe {
		if strings.TrimSpace(t.Symbol) == "" {
			invalid++
			continue
		}
		if _, dup := seen[t.Symbol]; dup {
			continue
		}
		seen[t.Symbol] = struct{}{}
		items = append(items, t)
	}
	slices.SortFunc(items, func(a, b entity.TickerIdentity) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return items, invalid
}
