package repository

import (
	"context"
	"errors"

	"github.com/Baaaki/storyline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// GetByDate returns the prompt for date (YYYY-MM-DD), or nil when none exists.
func (r *QuoteRepository) GetByDate(ctx context.Context, date string) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).Where("prompt_date = ?", date).First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quote, nil
}

// InsertIfAbsent inserts quote unless a row for its date already exists.
// Concurrent first visitors race here; the unique date index decides the winner
// and the losers insert nothing.
func (r *QuoteRepository) InsertIfAbsent(ctx context.Context, quote *models.Quote) error {
	return translateError(r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prompt_date"}},
			DoNothing: true,
		}).
		Create(quote).Error)
}
