package adapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

// changeDateLayouts are the date formats found in exported change ledgers.
var changeDateLayouts = []string{entity.DateLayout, "January 2, 2006", "Jan 2, 2006", "01/02/2006"}

// OpenCSV opens path and passes it to read.
func OpenCSV[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close file", "path", path, "error", err)
		}
	}()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadMembers reads the current constituents file and returns its Symbol column.
func ReadMembers(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := cols.require("Symbol"); err != nil {
		return nil, err
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read members row: %w", err)
		}
		if s := cols.get(rec, "Symbol"); s != "" {
			out = append(out, s)
		}
	}
}

// ReadChanges reads the membership change ledger (Date, Added_Ticker, Removed_Ticker).
// Removed_Security and Reason are read when present.
// Rows whose date cannot be parsed are footnotes or separators and are skipped.
func ReadChanges(r io.Reader) ([]usecase.MembershipChange, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := cols.require("Date", "Added_Ticker", "Removed_Ticker"); err != nil {
		return nil, err
	}

	var out []usecase.MembershipChange
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read changes row: %w", err)
		}
		d, ok := parseChangeDate(cols.get(rec, "Date"))
		if !ok {
			skipped++
			continue
		}
		out = append(out, usecase.MembershipChange{
			Date:            d,
			Added:           cols.get(rec, "Added_Ticker"),
			Removed:         cols.get(rec, "Removed_Ticker"),
			RemovedSecurity: cols.get(rec, "Removed_Security"),
			Reason:          cols.get(rec, "Reason"),
		})
	}
	if skipped > 0 {
		slog.Debug("skipped change rows without a date", "count", skipped)
	}
	return out, nil
}

func parseChangeDate(s string) (time.Time, bool) {
	for _, layout := range changeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.Day(t), true
		}
	}
	return time.Time{}, false
}

// ReadTickerDates reads an already derived ledger: ticker,start_date,end_date.
// Empty dates mean unknown start or still a member.
func ReadTickerDates(r io.Reader) ([]entity.TickerIdentity, error) {
	cr := csv.NewReader(r)
	cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := cols.require("ticker", "start_date", "end_date"); err != nil {
		return nil, err
	}

	var out []entity.TickerIdentity
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read ticker dates row: %w", err)
		}
		symbol := cols.get(rec, "ticker")
		if symbol == "" {
			continue
		}
		t := entity.TickerIdentity{Symbol: symbol}
		if t.Active.Start, err = optionalDay(cols.get(rec, "start_date")); err != nil {
			return nil, fmt.Errorf("%s: parse start_date: %w", symbol, err)
		}
		if t.Active.End, err = optionalDay(cols.get(rec, "end_date")); err != nil {
			return nil, fmt.Errorf("%s: parse end_date: %w", symbol, err)
		}
		out = append(out, t)
	}
}

func optionalDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := entity.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
