// Package adapters provides the source tables, file loaders, output sink and
// repository implementations for the price history feature.
package adapters

import (
	"fmt"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

// SeriesTable is a pre-indexed, read-only source keyed by source-specific alias.
// It is safe for concurrent readers once built.
type SeriesTable struct {
	source entity.SourceKind
	series map[string]entity.PriceSeries
}

var _ usecase.SeriesTable = (*SeriesTable)(nil)

// NewSeriesTable wraps an alias -> series index.
func NewSeriesTable(source entity.SourceKind, series map[string]entity.PriceSeries) *SeriesTable {
	if series == nil {
		series = map[string]entity.PriceSeries{}
	}
	return &SeriesTable{source: source, series: series}
}

// Lookup returns the series stored under alias, or an absent result.
func (t *SeriesTable) Lookup(alias string) entity.Lookup {
	return entity.Found(t.series[alias], fmt.Errorf("%s %s: %w", t.source, alias, domain.ErrSourceUnavailable))
}

// Len returns the number of aliases in the table.
func (t *SeriesTable) Len() int {
	return len(t.series)
}

// Source returns the kind of source the table was loaded from.
func (t *SeriesTable) Source() entity.SourceKind {
	return t.source
}
