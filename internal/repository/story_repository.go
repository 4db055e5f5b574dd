package repository

import (
	"context"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"gorm.io/gorm"
)

// Story listing orders.
const (
	SortTop = "top"
	SortNew = "new"
)

const storyViewColumns = `s.id, s.public_id, s.prompt_id, s.user_id, s.guest_name, s.title,
	s.content, s.is_anonymous, s.word_count, s.created_at,
	u.username AS username, u.public_id AS user_public_id,
	p.prompt_date AS prompt_date, p.sentence AS prompt_sentence,
	(SELECT COUNT(*) FROM flowers f WHERE f.story_id = s.id) AS flower_count`

type StoryRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// CreateStory inserts story. A second story for the same prompt and identity
// fails with a *ConstraintError naming one of the uq_story_*_per_day indexes.
func (r *StoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	return translateError(r.db.WithContext(ctx).Create(story).Error)
}

func (r *StoryRepository) views(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("stories AS s").
		Select(storyViewColumns).
		Joins("JOIN daily_prompts p ON p.id = s.prompt_id").
		Joins("LEFT JOIN users u ON u.id = s.user_id")
}

func (r *StoryRepository) firstView(q *gorm.DB) (*models.StoryView, error) {
	var views []models.StoryView
	if err := q.Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, nil
	}
	return &views[0], nil
}

func (r *StoryRepository) GetStoryByID(ctx context.Context, id uint) (*models.StoryView, error) {
	return r.firstView(r.views(ctx).Where("s.id = ?", id))
}

func (r *StoryRepository) GetStoryByPublicID(ctx context.Context, publicID string) (*models.StoryView, error) {
	return r.firstView(r.views(ctx).Where("s.public_id = ?", publicID))
}

// GetStoryForUserOnPrompt returns the user's story for a prompt, if any.
func (r *StoryRepository) GetStoryForUserOnPrompt(ctx context.Context, promptID, userID uint) (*models.StoryView, error) {
	return r.firstView(r.views(ctx).Where("s.prompt_id = ? AND s.user_id = ?", promptID, userID))
}

// ListByDate lists stories written for the prompt of date.
func (r *StoryRepository) ListByDate(ctx context.Context, date, sort string, limit, offset int) ([]models.StoryView, error) {
	q := r.views(ctx).Where("p.prompt_date = ?", date)
	if sort == SortTop {
		q = q.Order("flower_count DESC").Order("s.created_at DESC").Order("s.id DESC")
	} else {
		q = q.Order("s.created_at DESC").Order("s.id DESC")
	}

	var views []models.StoryView
	err := q.Limit(limit).Offset(offset).Scan(&views).Error
	return views, err
}

func (r *StoryRepository) CountOnDate(ctx context.Context, date string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("stories AS s").
		Joins("JOIN daily_prompts p ON p.id = s.prompt_id").
		Where("p.prompt_date = ?", date).
		Count(&count).Error
	return count, err
}

// TopOfDay returns the most flowered story for date, newest first on ties.
func (r *StoryRepository) TopOfDay(ctx context.Context, date string) (*models.StoryView, error) {
	views, err := r.ListByDate(ctx, date, SortTop, 1, 0)
	if err != nil || len(views) == 0 {
		return nil, err
	}
	return &views[0], nil
}

func (r *StoryRepository) byUser(ctx context.Context, userID uint, includeAnonymous bool) *gorm.DB {
	q := r.db.WithContext(ctx).Table("stories AS s").Where("s.user_id = ?", userID)
	if !includeAnonymous {
		q = q.Where("s.is_anonymous = ?", false)
	}
	return q
}

func (r *StoryRepository) ListByUser(ctx context.Context, userID uint, includeAnonymous bool, limit, offset int) ([]models.StoryView, error) {
	q := r.views(ctx).Where("s.user_id = ?", userID)
	if !includeAnonymous {
		q = q.Where("s.is_anonymous = ?", false)
	}

	var views []models.StoryView
	err := q.Order("s.created_at DESC").Order("s.id DESC").Limit(limit).Offset(offset).Scan(&views).Error
	return views, err
}

func (r *StoryRepository) CountByUser(ctx context.Context, userID uint, includeAnonymous bool) (int64, error) {
	var count int64
	err := r.byUser(ctx, userID, includeAnonymous).Count(&count).Error
	return count, err
}

func (r *StoryRepository) TotalWordsByUser(ctx context.Context, userID uint, includeAnonymous bool) (int64, error) {
	var total int64
	err := r.byUser(ctx, userID, includeAnonymous).
		Select("COALESCE(SUM(s.word_count), 0)").
		Scan(&total).Error
	return total, err
}

func (r *StoryRepository) CountStories(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Story{}).Count(&count).Error
	return count, err
}

// ResolveID maps a public id to the internal id; 0 when unknown.
func (r *StoryRepository) ResolveID(ctx context.Context, publicID string) (uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("public_id = ?", publicID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

func (r *StoryRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Story{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// CreatedSince returns story timestamps at or after since, for charts.
func (r *StoryRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).Model(&models.Story{}).
		Where("created_at >= ?", since).
		Order("created_at").
		Pluck("created_at", &stamps).Error
	return stamps, err
}
