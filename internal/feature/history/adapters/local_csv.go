package adapters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"price_history/internal/feature/history/domain/entity"
)

// Local archive exports use the Investing.com layout:
// "Date","Price","Open","High","Low","Vol.","Change %"
const (
	localDate       = "Date"
	localPrice      = "Price"
	localOpen       = "Open"
	localHigh       = "High"
	localLow        = "Low"
	localVolume     = "Vol."
	localDateLayout = "01/02/2006"
)

// volumeSuffixes expands abbreviated volumes such as "1.21M".
var volumeSuffixes = map[byte]decimal.Decimal{
	'K': decimal.NewFromInt(1_000),
	'M': decimal.NewFromInt(1_000_000),
	'B': decimal.NewFromInt(1_000_000_000),
}

// LoadLocalArchive reads every catalogued file from dir into a table keyed by local alias.
// files maps a file name to the alias it covers. Missing files are skipped with a warning.
func LoadLocalArchive(dir string, files map[string]string) (*SeriesTable, error) {
	series := make(map[string]entity.PriceSeries, len(files))
	for name, alias := range files {
		path := filepath.Join(dir, name)
		s, err := loadLocalFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("local archive file not found", "path", path, "alias", alias)
			continue
		}
		if err != nil {
			return nil, err
		}
		series[alias] = s
	}
	slog.Info("local archive loaded", "dir", dir, "tickers", len(series))
	return NewSeriesTable(entity.SourceLocal, series), nil
}

func loadLocalFile(path string) (entity.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close local archive file", "path", path, "error", err)
		}
	}()

	s, err := ParseLocalCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseLocalCSV parses one local archive export. Rows keep the file's order.
func ParseLocalCSV(r io.Reader) (entity.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	cols, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := cols.require(localDate, localPrice); err != nil {
		return nil, err
	}

	var out entity.PriceSeries
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read local row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row, err := parseLocalRow(cols, rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func parseLocalRow(cols columnIndex, rec []string) (entity.PriceRow, error) {
	var row entity.PriceRow

	raw := cols.get(rec, localDate)
	d, err := time.Parse(localDateLayout, raw)
	if err != nil {
		return row, fmt.Errorf("parse date %q: %w", raw, err)
	}
	row.Date = entity.Day(d)

	if row.AdjClose, err = parseCell(cols.get(rec, localPrice)); err != nil {
		return row, fmt.Errorf("parse price %q: %w", cols.get(rec, localPrice), err)
	}
	if row.Open, err = parseCell(cols.get(rec, localOpen)); err != nil {
		return row, fmt.Errorf("parse open %q: %w", cols.get(rec, localOpen), err)
	}
	if row.High, err = parseCell(cols.get(rec, localHigh)); err != nil {
		return row, fmt.Errorf("parse high %q: %w", cols.get(rec, localHigh), err)
	}
	if row.Low, err = parseCell(cols.get(rec, localLow)); err != nil {
		return row, fmt.Errorf("parse low %q: %w", cols.get(rec, localLow), err)
	}
	if row.Volume, err = ParseVolume(cols.get(rec, localVolume)); err != nil {
		return row, fmt.Errorf("parse volume %q: %w", cols.get(rec, localVolume), err)
	}
	return row, nil
}

// ParseVolume converts an abbreviated volume ("1.21M", "830.5K") to a number.
// Empty and "-" cells have no value.
func ParseVolume(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	mult, ok := volumeSuffixes[strings.ToUpper(s[len(s)-1:])[0]]
	if !ok {
		return parseCell(s)
	}
	v, err := parseCell(s[:len(s)-1])
	if err != nil || !v.Valid {
		return v, err
	}
	return decimal.NewNullDecimal(v.Decimal.Mul(mult)), nil
}
