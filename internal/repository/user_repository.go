package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetUserByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	return r.first(ctx, "public_id = ?", publicID)
}

// GetUserByUsername matches case-insensitively, like the unique index.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "LOWER(username) = LOWER(?)", username)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateFavoriteQuote(ctx context.Context, id uint, sentence string, book, author *string) error {
	return r.update(ctx, id, map[string]interface{}{
		"favorite_quote_sentence": sentence,
		"favorite_quote_book":     book,
		"favorite_quote_author":   author,
	})
}

func (r *UserRepository) UpdateUsername(ctx context.Context, id uint, username string) error {
	return r.update(ctx, id, map[string]interface{}{"username": username})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	return r.update(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id uint, avatarPath *string) error {
	return r.update(ctx, id, map[string]interface{}{"avatar_path": avatarPath})
}

func (r *UserRepository) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CreatedSince returns registration timestamps at or after since, for charts.
func (r *UserRepository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("created_at >= ?", since).
		Order("created_at").
		Pluck("created_at", &stamps).Error
	return stamps, err
}
