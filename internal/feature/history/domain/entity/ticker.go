// Package entity defines the domain models for the price history feature.
package entity

import "time"

// TickerIdentity is a ticker symbol as it appears in the index membership ledger.
// One value exists per distinct ticker ever observed in the index, delisted ones included.
type TickerIdentity struct {
	Symbol string      // Canonical symbol (e.g., "BRK.B")
	Active ActiveRange // Membership bounds derived from the change ledger
}

// ActiveRange is the period a ticker was a member of the index.
// A nil Start means the addition predates the ledger, a nil End means the ticker is still a member.
type ActiveRange struct {
	Start *time.Time
	End   *time.Time
}

// Current reports whether the ticker is still an index member.
func (r ActiveRange) Current() bool {
	return r.End == nil
}
