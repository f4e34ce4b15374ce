package adapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"price_history/internal/feature/history/domain/entity"
)

// Bulk dump columns. Other columns of the file are ignored.
const (
	bulkTicker = "ticker"
	bulkDate   = "date"
	bulkOpen   = "adj_open"
	bulkHigh   = "adj_high"
	bulkLow    = "adj_low"
	bulkClose  = "adj_close"
	bulkVolume = "adj_volume"
)

// LoadBulkFile loads the bulk historical dump at path into a table keyed by bulk alias.
func LoadBulkFile(path string) (*SeriesTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bulk file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close bulk file", "path", path, "error", err)
		}
	}()

	t, err := LoadBulkCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("bulk table loaded", "path", path, "tickers", t.Len())
	return t, nil
}

// LoadBulkCSV reads a WIKI-style price dump and groups its rows per ticker.
func LoadBulkCSV(r io.Reader) (*SeriesTable, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := cols.require(bulkTicker, bulkDate, bulkClose); err != nil {
		return nil, err
	}

	series := map[string]entity.PriceSeries{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bulk row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		ticker := cols.get(rec, bulkTicker)
		if ticker == "" {
			continue
		}
		row, err := parseBulkRow(cols, rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series[ticker] = append(series[ticker], row)
	}
	return NewSeriesTable(entity.SourceBulk, series), nil
}

func parseBulkRow(cols columnIndex, rec []string) (entity.PriceRow, error) {
	var row entity.PriceRow

	d, err := entity.ParseDay(cols.get(rec, bulkDate))
	if err != nil {
		return row, fmt.Errorf("parse date %q: %w", cols.get(rec, bulkDate), err)
	}
	row.Date = d

	if row.Open, err = parseCell(cols.get(rec, bulkOpen)); err != nil {
		return row, fmt.Errorf("parse open %q: %w", cols.get(rec, bulkOpen), err)
	}
	if row.High, err = parseCell(cols.get(rec, bulkHigh)); err != nil {
		return row, fmt.Errorf("parse high %q: %w", cols.get(rec, bulkHigh), err)
	}
	if row.Low, err = parseCell(cols.get(rec, bulkLow)); err != nil {
		return row, fmt.Errorf("parse low %q: %w", cols.get(rec, bulkLow), err)
	}
	if row.AdjClose, err = parseCell(cols.get(rec, bulkClose)); err != nil {
		return row, fmt.Errorf("parse close %q: %w", cols.get(rec, bulkClose), err)
	}
	if row.Volume, err = parseCell(cols.get(rec, bulkVolume)); err != nil {
		return row, fmt.Errorf("parse volume %q: %w", cols.get(rec, bulkVolume), err)
	}
	return row, nil
}
