package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"price_history/internal/feature/history/domain/entity"
)

// day は YYYY-MM-DD をパースします。テーブルの書き間違いは panic します。
func day(s string) time.Time {
	t, err := entity.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func row(date, closePrice string) entity.PriceRow {
	return entity.PriceRow{Date: day(date), AdjClose: price(closePrice)}
}

// days は start から n 日連続の行を返します。終値はすべて closePrice です。
func days(start string, n int, closePrice string) entity.PriceSeries {
	out := make(entity.PriceSeries, 0, n)
	d := day(start)
	for i := 0; i < n; i++ {
		out = append(out, entity.PriceRow{Date: d.AddDate(0, 0, i), AdjClose: price(closePrice)})
	}
	return out
}

func dates(s entity.PriceSeries) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, r.Date.Format(entity.DateLayout))
	}
	return out
}

// mockTable はSeriesTableのモック実装です。呼び出されたaliasを記録します。
type mockTable struct {
	mu     sync.Mutex
	series map[string]entity.PriceSeries
	calls  []string
}

func newMockTable(series map[string]entity.PriceSeries) *mockTable {
	return &mockTable{series: series}
}

func (m *mockTable) Lookup(alias string) entity.Lookup {
	m.mu.Lock()
	m.calls = append(m.calls, alias)
	m.mu.Unlock()
	return entity.Found(m.series[alias], nil)
}

func (m *mockTable) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type liveCall struct {
	Symbol string
	Start  time.Time
}

// mockLive はLiveRepositoryのモック実装です。
type mockLive struct {
	mu     sync.Mutex
	GetFn  func(ctx context.Context, symbol string, start time.Time) (entity.PriceSeries, error)
	called []liveCall
}

func (m *mockLive) GetDailySeries(ctx context.Context, symbol string, start time.Time) (entity.PriceSeries, error) {
	m.mu.Lock()
	m.called = append(m.called, liveCall{Symbol: symbol, Start: start})
	m.mu.Unlock()
	if m.GetFn != nil {
		return m.GetFn(ctx, symbol, start)
	}
	return nil, nil
}

func (m *mockLive) Calls() []liveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]liveCall(nil), m.called...)
}

// fixedClock は指定日の日中（UTC）で止まった時計を返します。
func fixedClock(date string) func() time.Time {
	t := day(date).Add(15 * time.Hour)
	return func() time.Time { return t }
}
