package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
	"price_history/internal/platform/externalapi/twelvedata/dto"
)

// Limiter は送信リクエストの間隔を調整します。
type Limiter interface {
	Wait(ctx context.Context) error
}

// APIError は失敗した Twelve Data 呼び出しです（HTTPステータスまたはエラー本文）。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twelvedata http %d", e.StatusCode)
	}
	return fmt.Sprintf("twelvedata %d: %s", e.StatusCode, e.Message)
}

// IsRetryable はリトライすべきエラーであれば true を返します。
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// TwelveDataMarket はTwelve Data外部APIから日足データを取得するLiveRepository実装です。
type TwelveDataMarket struct {
	cfg     Config
	client  *http.Client
	limiter Limiter
	logger  *slog.Logger
}

// TwelveDataMarketがLiveRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.LiveRepository = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket はクライアントを生成します。limiter は nil でも構いません。
func NewTwelveDataMarket(cfg Config, client *http.Client, limiter Limiter) *TwelveDataMarket {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &TwelveDataMarket{cfg: cfg, client: client, limiter: limiter, logger: slog.Default()}
}

// GetDailySeries は symbol の日足を start（当日を含む）から今日まで古い順に取得します。
// 1回の呼び出しは最大 OutputSize 行のため、前ページ最終行の翌日から次ページを要求し、
// 行数が足りないページが返るまで繰り返します。
func (t *TwelveDataMarket) GetDailySeries(ctx context.Context, symbol string, start time.Time) (entity.PriceSeries, error) {
	var out entity.PriceSeries
	from := entity.Day(start)

	for page := 1; ; page++ {
		rows, err := t.getPage(ctx, symbol, from)
		if err != nil {
			var apiErr *APIError
			// 2ページ目以降の「データなし」は前ページがちょうど末尾だったことを意味する
			if page > 1 && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
				break
			}
			return nil, err
		}

		added := 0
		for _, r := range rows {
			if len(out) > 0 && !r.Date.After(out[len(out)-1].Date) {
				continue
			}
			out = append(out, r)
			added++
		}
		t.logger.Debug("twelvedata page fetched",
			"symbol", symbol,
			"page", page,
			"from", from.Format(entity.DateLayout),
			"rows", len(rows),
		)

		if len(rows) < t.cfg.OutputSize || added == 0 {
			break
		}
		from = out[len(out)-1].Date.AddDate(0, 0, 1)
	}
	return out, nil
}

// getPage は from から始まる最大 OutputSize 行の1ページを要求します。
func (t *TwelveDataMarket) getPage(ctx context.Context, symbol string, from time.Time) (entity.PriceSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("start_date", from.Format(entity.DateLayout))
	q.Set("order", "ASC")
	q.Set("adjust", "all")
	q.Set("outputsize", strconv.Itoa(t.cfg.OutputSize))
	q.Set("apikey", t.cfg.APIKey)

	body, err := t.getWithRetry(ctx, q)
	if err != nil {
		return nil, err
	}
	return toSeries(body)
}

// getWithRetry はリトライ可能なエラーに対して指数バックオフでリクエストを再試行します。
func (t *TwelveDataMarket) getWithRetry(ctx context.Context, q url.Values) ([]byte, error) {
	var lastErr error
	backoff := t.cfg.Backoff

	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			// ジッター: backoff * (0.5〜1.5)
			wait := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			t.logger.Debug("retrying twelvedata request",
				"symbol", q.Get("symbol"),
				"attempt", attempt,
				"backoff", wait,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}

		body, err := t.get(ctx, q)
		if err == nil {
			return body, nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (t *TwelveDataMarket) get(ctx context.Context, q url.Values) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(t.cfg.BaseURL, "/"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, &APIError{StatusCode: res.StatusCode}
	}
	return body, nil
}

// toSeries は time_series の本文をデコードします。200応答内のエラーステータスは APIError です。
func toSeries(body []byte) (entity.PriceSeries, error) {
	var resp dto.TimeSeriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, &APIError{StatusCode: resp.Code, Message: resp.Message}
	}

	series := make(entity.PriceSeries, 0, len(resp.Values))
	for _, v := range resp.Values {
		// タイムスタンプをパース
		tm, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			tm, err = time.Parse(entity.DateLayout, v.Datetime)
			if err != nil {
				return nil, fmt.Errorf("parse time %q: %w", v.Datetime, err)
			}
		}
		row := entity.PriceRow{Date: entity.Day(tm)}
		if row.Open, err = parseNull(v.Open); err != nil {
			return nil, fmt.Errorf("parse open %q: %w", v.Open, err)
		}
		if row.High, err = parseNull(v.High); err != nil {
			return nil, fmt.Errorf("parse high %q: %w", v.High, err)
		}
		if row.Low, err = parseNull(v.Low); err != nil {
			return nil, fmt.Errorf("parse low %q: %w", v.Low, err)
		}
		if row.AdjClose, err = parseNull(v.Close); err != nil {
			return nil, fmt.Errorf("parse close %q: %w", v.Close, err)
		}
		if row.Volume, err = parseNull(v.Volume); err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
		series = append(series, row)
	}
	return series, nil
}

// parseNull は数値文字列をパースします。空文字列は値なしです。
func parseNull(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
