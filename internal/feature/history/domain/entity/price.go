package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used in every input and output file.
const DateLayout = "2006-01-02"

// PriceRow is one trading day for one ticker.
// Fields a source does not provide stay invalid and are written as empty cells.
type PriceRow struct {
	Date     time.Time           // Calendar day, midnight UTC
	Open     decimal.NullDecimal // Opening price
	High     decimal.NullDecimal // Highest price of the day
	Low      decimal.NullDecimal // Lowest price of the day
	AdjClose decimal.NullDecimal // Close adjusted for splits and dividends
	Volume   decimal.NullDecimal // Traded volume
}

// PriceSeries is the daily history of one ticker.
// A finalized series is strictly increasing by date.
type PriceSeries []PriceRow

// Day truncates t to its calendar day at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// LastDate returns the most recent date in the series, whatever its ordering.
func (s PriceSeries) LastDate() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	last := Day(s[0].Date)
	for _, r := range s[1:] {
		if d := Day(r.Date); d.After(last) {
			last = d
		}
	}
	return last, true
}

// Since returns the rows dated on or after start, keeping their order.
func (s PriceSeries) Since(start time.Time) PriceSeries {
	start = Day(start)
	out := make(PriceSeries, 0, len(s))
	for _, r := range s {
		if !Day(r.Date).Before(start) {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks that dates are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Date.After(s[i-1].Date) {
			return fmt.Errorf("row %d: date %s does not follow %s",
				i, s[i].Date.Format(DateLayout), s[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}
