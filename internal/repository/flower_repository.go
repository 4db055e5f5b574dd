package repository

import (
	"context"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FlowerRepository struct {
	db *gorm.DB
}

func NewFlowerRepository(db *gorm.DB) *FlowerRepository {
	return &FlowerRepository{db: db}
}

// Toggle removes the user's flower if present, adds it otherwise, and returns
// the new state with the story's total. It runs in one transaction, so a
// failure at any step leaves no partial toggle behind.
func (r *FlowerRepository) Toggle(ctx context.Context, storyID, userID uint) (bool, int64, error) {
	var flowered bool
	var count int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		has, err := hasFlower(tx, storyID, userID)
		if err != nil {
			return err
		}

		if has {
			if err := tx.Where("story_id = ? AND user_id = ?", storyID, userID).
				Delete(&models.Flower{}).Error; err != nil {
				return err
			}
		} else {
			// A concurrent first toggle may have inserted the row since the
			// read above; its flower stands and this toggle reports it.
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "story_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).Create(&models.Flower{StoryID: storyID, UserID: userID}).Error
			if err != nil {
				return translateError(err)
			}
		}
		flowered = !has

		count, err = countForStory(tx, storyID)
		return err
	})
	if err != nil {
		return false, 0, err
	}

	return flowered, count, nil
}

func (r *FlowerRepository) HasFlower(ctx context.Context, storyID, userID uint) (bool, error) {
	return hasFlower(r.db.WithContext(ctx), storyID, userID)
}

func (r *FlowerRepository) CountForStory(ctx context.Context, storyID uint) (int64, error) {
	return countForStory(r.db.WithContext(ctx), storyID)
}

func (r *FlowerRepository) CountFlowers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Flower{}).Count(&count).Error
	return count, err
}

// CreatedSince returns flower timestamps at or after since, for charts.
func (r *FlowerRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).Model(&models.Flower{}).
		Where("created_at >= ?", since).
		Order("created_at").
		Pluck("created_at", &stamps).Error
	return stamps, err
}

func hasFlower(db *gorm.DB, storyID, userID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Flower{}).
		Where("story_id = ? AND user_id = ?", storyID, userID).
		Count(&count).Error
	return count > 0, err
}

func countForStory(db *gorm.DB, storyID uint) (int64, error) {
	var count int64
	err := db.Model(&models.Flower{}).Where("story_id = ?", storyID).Count(&count).Error
	return count, err
}
