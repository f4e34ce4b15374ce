// Package twelvedata は Twelve Data API を使ったライブ価格ソースを提供します。
package twelvedata

import "time"

// 省略可能なクライアント設定のデフォルト値
const (
	DefaultBaseURL    = "https://api.twelvedata.com"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultBackoff    = time.Second
	DefaultOutputSize = 5000
)

// Config は Twelve Data APIクライアントの設定を保持します。
type Config struct {
	APIKey     string        // 認証用のAPIキー
	BaseURL    string        // APIのベースURL（例: "https://api.twelvedata.com"）
	Timeout    time.Duration // HTTPリクエストのタイムアウト
	MaxRetries int           // 429と5xx応答時のリトライ回数
	Backoff    time.Duration // 初回リトライの待機時間（試行ごとに倍増）
	OutputSize int           // 1回に要求する行数（APIの上限は5000）
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.OutputSize <= 0 || c.OutputSize > DefaultOutputSize {
		c.OutputSize = DefaultOutputSize
	}
	return c
}
