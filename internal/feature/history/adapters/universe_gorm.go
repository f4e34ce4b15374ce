package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

// TickerModel is the persisted form of a TickerIdentity.
type TickerModel struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;not null;uniqueIndex"`
	StartDate *time.Time
	EndDate   *time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TickerModel) TableName() string {
	return "tickers"
}

type universeGorm struct {
	db *gorm.DB
}

var _ usecase.UniverseRepository = (*universeGorm)(nil)

// NewUniverseRepository creates a gorm-backed universe repository.
func NewUniverseRepository(db *gorm.DB) *universeGorm {
	return &universeGorm{db: db}
}

func toTickerModel(t entity.TickerIdentity) TickerModel {
	return TickerModel{
		Symbol:    t.Symbol,
		StartDate: dayPtr(t.Active.Start),
		EndDate:   dayPtr(t.Active.End),
	}
}

// UpsertAll inserts tickers, or refreshes the active range of known ones.
func (r *universeGorm) UpsertAll(ctx context.Context, tickers []entity.TickerIdentity) error {
	if len(tickers) == 0 {
		return nil
	}
	ms := make([]TickerModel, 0, len(tickers))
	for _, t := range tickers {
		ms = append(ms, toTickerModel(t))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_date", "end_date", "updated_at"}),
	}).CreateInBatches(&ms, 500).Error
}

// ListAll returns the whole universe sorted by symbol.
func (r *universeGorm) ListAll(ctx context.Context) ([]entity.TickerIdentity, error) {
	var rows []TickerModel
	if err := r.db.WithContext(ctx).Order("symbol ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.TickerIdentity, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.TickerIdentity{
			Symbol: m.Symbol,
			Active: entity.ActiveRange{
				Start: dayPtr(m.StartDate),
				End:   dayPtr(m.EndDate),
			},
		})
	}
	return out, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := entity.Day(*t)
	return &d
}
