// Package domain defines domain-level errors for the price history feature.
package domain

import "errors"

// Domain errors for the reconciliation cascade.
// Only ErrSinkFatal stops a run; everything else is recorded per ticker and reported.
var (
	// ErrSourceUnavailable indicates that a source holds no data for the requested alias.
	// It drives cascade fallthrough and is never surfaced as a run failure.
	ErrSourceUnavailable = errors.New("source has no data for ticker")

	// ErrLiveFetch indicates that the live API query itself failed.
	// The cascade treats it exactly like ErrSourceUnavailable.
	ErrLiveFetch = errors.New("live fetch failed")

	// ErrTickerUnresolved indicates that no source produced any row for a ticker.
	ErrTickerUnresolved = errors.New("no source yielded data for ticker")

	// ErrInvalidTicker indicates a universe entry without a usable symbol.
	ErrInvalidTicker = errors.New("ticker has an empty symbol")

	// ErrSinkWrite indicates that one ticker's rows could not be written.
	// The ticker is reported as failed and the run continues.
	ErrSinkWrite = errors.New("failed to write ticker rows")

	// ErrSinkFatal indicates that the destination stream cannot be used at all.
	ErrSinkFatal = errors.New("output destination unavailable")
)
