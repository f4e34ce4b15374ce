package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
)

// DefaultEpoch はライブのみで履歴を取得する場合の開始日です。
var DefaultEpoch = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

// SeriesTable はインデックス済みのインメモリソース（ローカルアーカイブまたはバルクダンプ）です。
// インターフェイスは提供側（adapters）ではなく利用側（usecase）で定義します。
type SeriesTable interface {
	Lookup(alias string) entity.Lookup
}

// LiveRepository はライブAPIから start（当日を含む）以降の日足を取得します。
// エラーは想定内であり、カスケードの外には伝播しません。
type LiveRepository interface {
	GetDailySeries(ctx context.Context, symbol string, start time.Time) (entity.PriceSeries, error)
}

// CascadeSelector は銘柄の履歴をどのソースから組み立てるかを決定します。
type CascadeSelector interface {
	Select(ctx context.Context, ticker entity.TickerIdentity) entity.CascadeOutcome
}

// Selector はローカル → バルク → ライブの優先順位を実装します。
// 可変状態を持たないため、Select は複数のgoroutineから呼び出せます。
type Selector struct {
	aliases     AliasMap
	local       SeriesTable
	bulk        SeriesTable
	live        LiveRepository
	epoch       time.Time
	now         func() time.Time
	liveTimeout time.Duration
	logger      *slog.Logger
}

var _ CascadeSelector = (*Selector)(nil)

// SelectorOption は Selector の設定を変更します。
type SelectorOption func(*Selector)

// WithEpoch はベース系列がない場合の取得開始日を設定します。
func WithEpoch(epoch time.Time) SelectorOption {
	return func(s *Selector) {
		s.epoch = entity.Day(epoch)
	}
}

// WithClock は time.Now を置き換えます（主にテスト用）。
func WithClock(now func() time.Time) SelectorOption {
	return func(s *Selector) {
		s.now = now
	}
}

// WithLiveTimeout はライブ問い合わせ1回あたりのタイムアウトを設定します。0はタイムアウトなしです。
func WithLiveTimeout(d time.Duration) SelectorOption {
	return func(s *Selector) {
		s.liveTimeout = d
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector は Selector を生成します。nil のソースは常にデータなしとして扱います。
func NewSelector(aliases AliasMap, local, bulk SeriesTable, live LiveRepository, opts ...SelectorOption) *Selector {
	s := &Selector{
		aliases: aliases,
		local:   local,
		bulk:    bulk,
		live:    live,
		epoch:   DefaultEpoch,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select は1銘柄分の結果を組み立てます。
//
//  1. ローカルアーカイブにあればそれを正とし、そのまま使います。他のソースは参照しません。
//  2. なければバルクダンプをベース系列とします。
//  3. ベースの最終日が今日の前日より古い場合、その翌日からライブAPIで補完します。
//     ベースがなければライブAPIに全期間を問い合わせます。
//  4. どのソースにも行がなければ未解決として記録します。
func (s *Selector) Select(ctx context.Context, ticker entity.TickerIdentity) entity.CascadeOutcome {
	out := entity.CascadeOutcome{
		Ticker: ticker,
		Alias:  s.aliases.Resolve(ticker.Symbol, entity.SourceLive),
	}
	log := s.logger.With("ticker", ticker.Symbol)

	local := s.lookupTable(&out, entity.SourceLocal, s.local, ticker.Symbol)
	if local.OK() {
		out.Series = Merge(local.Series, nil)
		out.Sources = []entity.SourceKind{entity.SourceLocal}
		log.Debug("using local archive", "rows", len(out.Series))
		return out
	}

	var base entity.PriceSeries
	start := s.epoch

	bulk := s.lookupTable(&out, entity.SourceBulk, s.bulk, ticker.Symbol)
	if bulk.OK() {
		base = bulk.Series
		out.Sources = append(out.Sources, entity.SourceBulk)

		last, _ := base.LastDate()
		today := entity.Day(s.now())
		if !last.Before(today.AddDate(0, 0, -1)) {
			out.Series = Merge(base, nil)
			log.Debug("bulk series is current, skipping live", "last", last.Format(entity.DateLayout))
			return out
		}
		start = last.AddDate(0, 0, 1)
	}

	live := s.lookupLive(ctx, &out, ticker.Symbol, start)
	if live.OK() {
		out.Sources = append(out.Sources, entity.SourceLive)
	}

	if base == nil && !live.OK() {
		out.Err = fmt.Errorf("%s: %w", ticker.Symbol, domain.ErrTickerUnresolved)
		log.Info("no source has data for ticker")
		return out
	}

	out.Series = Merge(base, live.Series)
	log.Debug("cascade resolved", "sources", out.Sources, "rows", len(out.Series))
	return out
}

// lookupTable はインメモリのテーブルを参照し、試行を記録します。
func (s *Selector) lookupTable(out *entity.CascadeOutcome, source entity.SourceKind, table SeriesTable, ticker string) entity.Lookup {
	alias := s.aliases.Resolve(ticker, source)

	var res entity.Lookup
	if table == nil {
		res = entity.Absent(fmt.Errorf("%s %s: %w", source, alias, domain.ErrSourceUnavailable))
	} else {
		res = table.Lookup(alias)
	}
	out.Attempts = append(out.Attempts, entity.Attempt{
		Source: source,
		Alias:  alias,
		Status: res.Status,
		Rows:   len(res.Series),
		Reason: res.Reason,
	})
	return res
}

// lookupLive はライブAPIに問い合わせ、失敗を値として返します。
// start より前の行は捨てるため、補完がベースと重なることはありません。
func (s *Selector) lookupLive(ctx context.Context, out *entity.CascadeOutcome, ticker string, start time.Time) entity.Lookup {
	alias := s.aliases.Resolve(ticker, entity.SourceLive)

	var res entity.Lookup
	switch {
	case s.live == nil:
		res = entity.Absent(fmt.Errorf("live %s: %w", alias, domain.ErrSourceUnavailable))
	default:
		if s.liveTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.liveTimeout)
			defer cancel()
		}
		series, err := s.live.GetDailySeries(ctx, alias, start)
		if err != nil {
			res = entity.Failed(fmt.Errorf("live %s: %w: %w", alias, domain.ErrLiveFetch, err))
			s.logger.Warn("live query failed", "ticker", ticker, "alias", alias, "error", err)
		} else {
			res = entity.Found(series.Since(start), fmt.Errorf("live %s: %w", alias, domain.ErrSourceUnavailable))
		}
	}

	out.Attempts = append(out.Attempts, entity.Attempt{
		Source: entity.SourceLive,
		Alias:  alias,
		Start:  start,
		Status: res.Status,
		Rows:   len(res.Series),
		Reason: res.Reason,
	})
	return res
}
