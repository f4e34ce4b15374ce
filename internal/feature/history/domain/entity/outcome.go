package entity

import "time"

// Attempt records one source consulted for a ticker.
type Attempt struct {
	Source SourceKind
	Alias  string
	Start  time.Time // live queries only
	Status LookupStatus
	Rows   int
	Reason error
}

// CascadeOutcome is the per-ticker result of the cascade.
// Either Series holds the finalized history and Sources names its contributors,
// or Err explains why nothing was found.
type CascadeOutcome struct {
	Ticker   TickerIdentity
	Alias    string       // symbol written to the output
	Series   PriceSeries  // finalized, strictly increasing
	Sources  []SourceKind // contributing sources in precedence order
	Attempts []Attempt
	Err      error
}

// Resolved reports whether the cascade produced rows for the ticker.
func (o CascadeOutcome) Resolved() bool {
	return o.Err == nil && len(o.Series) > 0
}
