package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

type emitted struct {
	Symbol string
	Rows   int
}

// mockSink はSinkのモック実装です。EmitFnが未設定なら常に成功します。
type mockSink struct {
	EmitFn  func(symbol string, series entity.PriceSeries) error
	emitted []emitted
}

func (m *mockSink) Emit(symbol string, series entity.PriceSeries) error {
	if m.EmitFn != nil {
		if err := m.EmitFn(symbol, series); err != nil {
			return err
		}
	}
	m.emitted = append(m.emitted, emitted{Symbol: symbol, Rows: len(series)})
	return nil
}

// mockSelector はCascadeSelectorのモック実装です。
type mockSelector struct {
	SelectFn func(ctx context.Context, t entity.TickerIdentity) entity.CascadeOutcome
}

func (m mockSelector) Select(ctx context.Context, t entity.TickerIdentity) entity.CascadeOutcome {
	return m.SelectFn(ctx, t)
}

type mockRecorder struct {
	mu       sync.Mutex
	observed map[string]bool
}

func (m *mockRecorder) ObserveOutcome(o entity.CascadeOutcome, written bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observed == nil {
		m.observed = map[string]bool{}
	}
	m.observed[o.Ticker.Symbol] = written
}

// universeSelector は data にある銘柄をバルクから解決し、それ以外を失敗にします。
func universeSelector(data map[string]entity.PriceSeries) mockSelector {
	return mockSelector{SelectFn: func(ctx context.Context, t entity.TickerIdentity) entity.CascadeOutcome {
		s, ok := data[t.Symbol]
		if !ok {
			return entity.CascadeOutcome{Ticker: t, Alias: t.Symbol, Err: fmt.Errorf("%s: %w", t.Symbol, domain.ErrTickerUnresolved)}
		}
		return entity.CascadeOutcome{Ticker: t, Alias: t.Symbol, Series: s, Sources: []entity.SourceKind{entity.SourceBulk}}
	}}
}

func TestOrchestrator_Run_SortedAndComplete(t *testing.T) {
	t.Parallel()

	data := map[string]entity.PriceSeries{
		"MSFT": days("2020-01-01", 2, "1"),
		"AAPL": days("2020-01-01", 3, "1"),
		"GOOG": days("2020-01-01", 1, "1"),
	}
	universe := symbols("MSFT", "ZZZZ", "AAPL", "GOOG", "CCC", "AAPL")

	for name, sched := range map[string]usecase.Scheduler{
		"sequential": nil,
		"parallel":   usecase.ParallelScheduler{Workers: 3},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sink := &mockSink{}
			rec := &mockRecorder{}
			o := usecase.NewOrchestrator(universeSelector(data), sink, sched, rec, nil)

			report, err := o.Run(context.Background(), universe)
			require.NoError(t, err)

			assert.Equal(t, []emitted{{"AAPL", 3}, {"GOOG", 1}, {"MSFT", 2}}, sink.emitted)
			assert.Equal(t, 5, report.Universe)
			assert.Equal(t, 3, report.Succeeded)
			assert.Equal(t, 6, report.RowsWritten)
			assert.Equal(t, 3, report.BySource[entity.SourceBulk])
			assert.Equal(t, []string{"CCC", "ZZZZ"}, report.FailedSymbols())
			for _, f := range report.Failed {
				assert.ErrorIs(t, f.Reason, domain.ErrTickerUnresolved)
			}
			assert.Equal(t, report.Universe, report.Succeeded+len(report.Failed))
			assert.Equal(t, map[string]bool{"AAPL": true, "CCC": false, "GOOG": true, "MSFT": true, "ZZZZ": false}, rec.observed)
		})
	}
}

func TestOrchestrator_Run_WriteErrorContinues(t *testing.T) {
	t.Parallel()

	data := map[string]entity.PriceSeries{
		"AAPL": days("2020-01-01", 1, "1"),
		"GOOG": days("2020-01-01", 1, "1"),
		"MSFT": days("2020-01-01", 1, "1"),
	}
	sink := &mockSink{EmitFn: func(symbol string, series entity.PriceSeries) error {
		if symbol == "GOOG" {
			return fmt.Errorf("%s: %w: %w", symbol, domain.ErrSinkWrite, errors.New("encode"))
		}
		return nil
	}}
	o := usecase.NewOrchestrator(universeSelector(data), sink, nil, nil, nil)

	report, err := o.Run(context.Background(), symbols("AAPL", "GOOG", "MSFT"))

	require.NoError(t, err)
	assert.Equal(t, []emitted{{"AAPL", 1}, {"MSFT", 1}}, sink.emitted)
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "GOOG", report.Failed[0].Symbol)
	assert.ErrorIs(t, report.Failed[0].Reason, domain.ErrSinkWrite)
}

func TestOrchestrator_Run_FatalSinkAborts(t *testing.T) {
	t.Parallel()

	data := map[string]entity.PriceSeries{
		"AAPL": days("2020-01-01", 1, "1"),
		"GOOG": days("2020-01-01", 1, "1"),
		"MSFT": days("2020-01-01", 1, "1"),
	}
	sink := &mockSink{EmitFn: func(symbol string, series entity.PriceSeries) error {
		if symbol == "GOOG" {
			return fmt.Errorf("%w: partial write", domain.ErrSinkFatal)
		}
		return nil
	}}
	o := usecase.NewOrchestrator(universeSelector(data), sink, usecase.ParallelScheduler{Workers: 2}, nil, nil)

	report, err := o.Run(context.Background(), symbols("AAPL", "GOOG", "MSFT"))

	assert.ErrorIs(t, err, domain.ErrSinkFatal)
	assert.Equal(t, []emitted{{"AAPL", 1}}, sink.emitted)
	assert.Equal(t, 1, report.Succeeded, "partial report is still returned")
}

func TestOrchestrator_Run_Idempotent(t *testing.T) {
	t.Parallel()

	data := map[string]entity.PriceSeries{
		"AAPL": days("2020-01-01", 4, "1"),
		"MSFT": days("2020-01-03", 2, "2"),
	}
	run := func() ([]emitted, usecase.Report) {
		sink := &mockSink{}
		o := usecase.NewOrchestrator(universeSelector(data), sink, usecase.ParallelScheduler{Workers: 4}, nil, nil)
		report, err := o.Run(context.Background(), symbols("MSFT", "NONE", "AAPL"))
		require.NoError(t, err)
		return sink.emitted, report
	}

	first, r1 := run()
	second, r2 := run()
	assert.Equal(t, first, second)
	assert.Equal(t, r1.FailedSymbols(), r2.FailedSymbols())
}

func TestOrchestrator_Run_EmptySymbolIsReported(t *testing.T) {
	t.Parallel()

	data := map[string]entity.PriceSeries{"AAPL": days("2020-01-01", 1, "1")}
	sink := &mockSink{}
	o := usecase.NewOrchestrator(universeSelector(data), sink, nil, nil, nil)

	report, err := o.Run(context.Background(), symbols("AAPL", "", " "))

	require.NoError(t, err)
	assert.Equal(t, []emitted{{"AAPL", 1}}, sink.emitted)
	assert.Equal(t, 3, report.Universe)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 2)
	for _, f := range report.Failed {
		assert.ErrorIs(t, f.Reason, domain.ErrInvalidTicker)
	}
	assert.Equal(t, report.Universe, report.Succeeded+len(report.Failed))
}

func TestOrchestrator_Run_EmptyUniverse(t *testing.T) {
	t.Parallel()

	sink := &mockSink{}
	o := usecase.NewOrchestrator(universeSelector(nil), sink, nil, nil, nil)

	report, err := o.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, report.Universe)
	assert.Empty(t, sink.emitted)
}
