package adapters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

// OutputHeader is the column order of the assembled file.
var OutputHeader = []string{"ticker", "date", "Open", "High", "Low", "Adj Close", "Volume"}

// CSVSink appends one ticker at a time to a CSV stream.
// The header is written once, together with the first ticker that has rows.
type CSVSink struct {
	mu            sync.Mutex
	w             io.Writer
	closer        io.Closer
	headerWritten bool
	closed        bool
	tickers       int
	rows          int
}

var _ usecase.Sink = (*CSVSink)(nil)

// NewCSVSink writes to w. The caller keeps ownership of w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w}
}

// CreateCSVSink creates (or truncates) the file at path.
// Failing to open the destination is fatal for a run.
func CreateCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", domain.ErrSinkFatal, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSinkFatal, err)
	}
	return &CSVSink{w: f, closer: f}, nil
}

// Emit writes the rows of one ticker. An empty series writes nothing.
// Rows are encoded in memory first and handed to the stream in a single write,
// so a failed ticker leaves no partial rows unless the stream itself breaks mid-write.
func (s *CSVSink) Emit(symbol string, series entity.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: sink is closed", domain.ErrSinkFatal)
	}
	if len(series) == 0 {
		return nil
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if !s.headerWritten {
		if err := cw.Write(OutputHeader); err != nil {
			return fmt.Errorf("%s: %w: %w", symbol, domain.ErrSinkWrite, err)
		}
	}
	record := make([]string, len(OutputHeader))
	for _, r := range series {
		record[0] = symbol
		record[1] = r.Date.Format(entity.DateLayout)
		record[2] = formatCell(r.Open)
		record[3] = formatCell(r.High)
		record[4] = formatCell(r.Low)
		record[5] = formatCell(r.AdjClose)
		record[6] = formatCell(r.Volume)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%s: %w: %w", symbol, domain.ErrSinkWrite, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%s: %w: %w", symbol, domain.ErrSinkWrite, err)
	}

	n, err := s.w.Write(buf.Bytes())
	if err != nil || n != buf.Len() {
		if err == nil {
			err = io.ErrShortWrite
		}
		if n > 0 {
			// rows already written cannot be taken back, so the whole output is now inconsistent
			s.closed = true
			return fmt.Errorf("%w: partial write for %s: %w", domain.ErrSinkFatal, symbol, err)
		}
		return fmt.Errorf("%s: %w: %w", symbol, domain.ErrSinkWrite, err)
	}

	s.headerWritten = true
	s.tickers++
	s.rows += len(series)
	return nil
}

// Written returns the number of tickers and rows written so far.
func (s *CSVSink) Written() (tickers, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickers, s.rows
}

// Close syncs and closes the underlying file when the sink owns one.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed && s.closer == nil {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	if f, ok := s.closer.(*os.File); ok {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			s.closer = nil
			return err
		}
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
