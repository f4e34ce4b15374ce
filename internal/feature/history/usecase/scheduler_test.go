package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

func symbols(names ...string) []entity.TickerIdentity {
	out := make([]entity.TickerIdentity, 0, len(names))
	for _, n := range names {
		out = append(out, entity.TickerIdentity{Symbol: n})
	}
	return out
}

func TestSchedulers_DrainInInputOrder(t *testing.T) {
	t.Parallel()

	items := symbols("A", "B", "C", "D", "E", "F", "G", "H", "I", "J")
	// 後の項目ほど先に終わる
	delay := map[string]time.Duration{"A": 30 * time.Millisecond, "B": 20 * time.Millisecond, "C": 10 * time.Millisecond}

	schedulers := map[string]usecase.Scheduler{
		"sequential": usecase.SequentialScheduler{},
		"parallel":   usecase.ParallelScheduler{Workers: 4},
		"one worker": usecase.ParallelScheduler{Workers: 1},
		"zero value": usecase.ParallelScheduler{},
	}

	for name, s := range schedulers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			work := func(ctx context.Context, tk entity.TickerIdentity) entity.CascadeOutcome {
				time.Sleep(delay[tk.Symbol])
				return entity.CascadeOutcome{Ticker: tk}
			}
			var got []string
			drain := func(o entity.CascadeOutcome) error {
				got = append(got, o.Ticker.Symbol)
				return nil
			}

			require.NoError(t, s.Run(context.Background(), items, work, drain))
			assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}, got)
		})
	}
}

func TestParallelScheduler_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	work := func(ctx context.Context, tk entity.TickerIdentity) entity.CascadeOutcome {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return entity.CascadeOutcome{Ticker: tk}
	}

	items := symbols("A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L")
	err := usecase.ParallelScheduler{Workers: 3}.Run(context.Background(), items, work, func(entity.CascadeOutcome) error { return nil })

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestSchedulers_StopOnDrainError(t *testing.T) {
	t.Parallel()

	fatal := errors.New("disk full")
	for name, s := range map[string]usecase.Scheduler{
		"sequential": usecase.SequentialScheduler{},
		"parallel":   usecase.ParallelScheduler{Workers: 3},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var drained []string
			work := func(ctx context.Context, tk entity.TickerIdentity) entity.CascadeOutcome {
				return entity.CascadeOutcome{Ticker: tk}
			}
			drain := func(o entity.CascadeOutcome) error {
				drained = append(drained, o.Ticker.Symbol)
				if o.Ticker.Symbol == "C" {
					return fatal
				}
				return nil
			}

			err := s.Run(context.Background(), symbols("A", "B", "C", "D", "E", "F", "G", "H"), work, drain)

			assert.ErrorIs(t, err, fatal)
			assert.Equal(t, []string{"A", "B", "C"}, drained)
		})
	}
}

func TestSchedulers_Canceled(t *testing.T) {
	t.Parallel()

	for name, s := range map[string]usecase.Scheduler{
		"sequential": usecase.SequentialScheduler{},
		"parallel":   usecase.ParallelScheduler{Workers: 2},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var drained int
			err := s.Run(ctx, symbols("A", "B"), func(ctx context.Context, tk entity.TickerIdentity) entity.CascadeOutcome {
				return entity.CascadeOutcome{Ticker: tk}
			}, func(entity.CascadeOutcome) error {
				drained++
				return nil
			})

			assert.ErrorIs(t, err, context.Canceled)
			assert.Zero(t, drained)
		})
	}
}
