package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/storyline/internal/avatar"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/internal/storage"
	"github.com/Baaaki/storyline/internal/utils"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 30
	maxEmailLength    = 100

	maxFavoriteSentence = 500
	maxFavoriteBook     = 100
	maxFavoriteAuthor   = 100

	MaxProfileStories = 8
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// PublicUser is the profile shape visible to anyone.
type PublicUser struct {
	PublicID      string                `json:"public_id"`
	Username      string                `json:"username"`
	AvatarURL     string                `json:"avatar_url"`
	FavoriteQuote *models.FavoriteQuote `json:"favorite_quote"`
	CreatedAt     time.Time             `json:"created_at"`
}

type ProfileStats struct {
	TotalStories int64 `json:"total_stories"`
	TotalWords   int64 `json:"total_words"`
}

type Profile struct {
	User  PublicUser   `json:"user"`
	Stats ProfileStats `json:"stats"`
}

// UserStoryPage is one page of a user's public stories.
type UserStoryPage struct {
	Items []models.StoryPayload `json:"items"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int64                 `json:"total"`
}

func NewPublicUser(u *models.User) PublicUser {
	return PublicUser{
		PublicID:      u.PublicID,
		Username:      u.Username,
		AvatarURL:     u.AvatarURL(),
		FavoriteQuote: u.FavoriteQuote(),
		CreatedAt:     u.CreatedAt,
	}
}

type UserService struct {
	userRepo  *repository.UserRepository
	storyRepo *repository.StoryRepository
	avatars   *avatar.Processor
	store     storage.Store
}

func NewUserService(
	userRepo *repository.UserRepository,
	storyRepo *repository.StoryRepository,
	avatars *avatar.Processor,
	store storage.Store,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		storyRepo: storyRepo,
		avatars:   avatars,
		store:     store,
	}
}

// Register creates an account. Checks run in a fixed order: format,
// confirmation, uniqueness, then password strength.
func (s *UserService) Register(ctx context.Context, username, email, password, passwordConfirm string) (*models.User, error) {
	start := time.Now()
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	logger.Log.Debug("Processing user registration",
		zap.String("username", username),
		zap.String("email", email),
	)

	// 1. Format
	if !usernameRegex.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(email) > maxEmailLength || !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	// 2. Confirmation
	if password != passwordConfirm {
		return nil, ErrPasswordMismatch
	}

	// 3. Uniqueness
	existing, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		logger.Log.Error("Failed to check username existence", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	if existing != nil {
		logger.Log.Warn("Username already exists", zap.String("username", username))
		return nil, ErrUsernameTaken
	}
	existing, err = s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to check email existence", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if existing != nil {
		logger.Log.Warn("Email already exists", zap.String("email", email))
		return nil, ErrEmailTaken
	}

	// 4. Strength
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	hashStart := time.Now()
	hash, err := utils.HashPassword(password)
	if err != nil {
		logger.Log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}
	hashDuration := time.Since(hashStart)

	user := models.NewUser(username, email, hash)
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		// A concurrent registration can still win between the check and the insert.
		switch {
		case repository.IsUniqueViolation(err, repository.ConstraintUsersUsername):
			return nil, ErrUsernameTaken
		case repository.IsUniqueViolation(err, repository.ConstraintUsersEmail):
			return nil, ErrEmailTaken
		}
		logger.Log.Error("Failed to create user in database", zap.String("username", username), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("User registered successfully",
		zap.Uint("user_id", user.ID),
		zap.String("username", username),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, nil
}

// Login checks credentials. Unknown identifiers and wrong passwords fail the
// same way.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	start := time.Now()
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return nil, ErrBadCredentials
	}

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetUserByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		logger.Log.Error("Failed to look up user", zap.Error(err))
		return nil, err
	}
	if user == nil {
		logger.Log.Warn("Login failed: user not found")
		return nil, ErrBadCredentials
	}

	verifyStart := time.Now()
	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		logger.Log.Warn("Login failed: stored hash unreadable", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, ErrBadCredentials
	}
	verifyDuration := time.Since(verifyStart)
	if !valid {
		logger.Log.Warn("Login failed: invalid password", zap.Uint("user_id", user.ID))
		return nil, ErrBadCredentials
	}

	if utils.NeedsRehash(user.PasswordHash) {
		if hash, err := utils.HashPassword(password); err == nil {
			if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
				logger.Log.Warn("Failed to upgrade password hash", zap.Uint("user_id", user.ID), zap.Error(err))
			} else {
				user.PasswordHash = hash
			}
		}
	}

	logger.Log.Info("User logged in successfully",
		zap.Uint("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Duration("password_verify_duration", verifyDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetUserByID(ctx, id)
}

func (s *UserService) GetByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	publicID = strings.ToLower(strings.TrimSpace(publicID))
	user, err := s.userRepo.GetUserByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ProfileData returns the public profile with story totals. Anonymous
// stories are left out of the totals.
func (s *UserService) ProfileData(ctx context.Context, publicID string) (*Profile, error) {
	user, err := s.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	total, err := s.storyRepo.CountByUser(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	words, err := s.storyRepo.TotalWordsByUser(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}

	return &Profile{
		User:  NewPublicUser(user),
		Stats: ProfileStats{TotalStories: total, TotalWords: words},
	}, nil
}

// Stories lists a user's non-anonymous stories, newest first.
func (s *UserService) Stories(ctx context.Context, publicID string, page, limit int) (*UserStoryPage, error) {
	user, err := s.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = MaxProfileStories
	}
	page, limit = clampPage(page, limit, MaxProfileStories)

	views, err := s.storyRepo.ListByUser(ctx, user.ID, false, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	total, err := s.storyRepo.CountByUser(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}

	return &UserStoryPage{Items: models.Payloads(views), Page: page, Limit: limit, Total: total}, nil
}

func (s *UserService) SetFavoriteQuote(ctx context.Context, userID uint, sentence, book, author string) error {
	sentence = strings.TrimSpace(sentence)
	book = strings.TrimSpace(book)
	author = strings.TrimSpace(author)

	switch {
	case sentence == "":
		return ErrFavSentenceMissing
	case utf8.RuneCountInString(sentence) > maxFavoriteSentence:
		return ErrFavSentenceTooLong
	case utf8.RuneCountInString(book) > maxFavoriteBook:
		return ErrFavBookTooLong
	case utf8.RuneCountInString(author) > maxFavoriteAuthor:
		return ErrFavAuthorTooLong
	}

	if err := s.userRepo.UpdateFavoriteQuote(ctx, userID, sentence, nonEmpty(book), nonEmpty(author)); err != nil {
		return s.mapUpdateError(err)
	}
	logger.Log.Info("Favorite quote updated", zap.Uint("user_id", userID))
	return nil
}

func (s *UserService) ChangeUsername(ctx context.Context, userID uint, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, ErrUsernameRequired
	case utf8.RuneCountInString(username) > maxUsernameLength:
		return nil, ErrUsernameTooLong
	case !usernameRegex.MatchString(username):
		return nil, ErrUsernameBadChars
	}

	existing, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != userID {
		return nil, ErrUsernameTaken
	}

	if err := s.userRepo.UpdateUsername(ctx, userID, username); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintUsersUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, s.mapUpdateError(err)
	}

	logger.Log.Info("Username changed", zap.Uint("user_id", userID), zap.String("username", username))
	return s.userRepo.GetUserByID(ctx, userID)
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, password, passwordConfirm string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if password != passwordConfirm {
		return ErrPasswordMismatch
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return s.mapUpdateError(err)
	}

	logger.Log.Info("Password changed", zap.Uint("user_id", userID))
	return nil
}

// ChangeAvatar validates and re-encodes the upload, stores it under a fresh
// name and removes the previous picture.
func (s *UserService) ChangeAvatar(ctx context.Context, userID uint, upload io.Reader) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	img, err := s.avatars.Process(upload)
	if err != nil {
		logger.Log.Warn("Avatar rejected", zap.Uint("user_id", userID), zap.Error(err))
		return "", err
	}

	suffix, err := utils.RandomHex(8)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.%s", user.PublicID, suffix, img.Ext)

	url, err := s.store.Put(ctx, name, img.Data, img.ContentType)
	if err != nil {
		logger.Log.Error("Failed to store avatar", zap.Uint("user_id", userID), zap.Error(err))
		return "", err
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, &url); err != nil {
		if delErr := s.store.Delete(ctx, url); delErr != nil {
			logger.Log.Warn("Failed to remove unused avatar", zap.Uint("user_id", userID), zap.String("url", url), zap.Error(delErr))
		}
		return "", s.mapUpdateError(err)
	}

	if user.AvatarPath != nil && *user.AvatarPath != "" && *user.AvatarPath != url {
		if err := s.store.Delete(ctx, *user.AvatarPath); err != nil {
			logger.Log.Warn("Failed to delete old avatar", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	logger.Log.Info("Avatar updated",
		zap.Uint("user_id", userID),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("bytes", len(img.Data)),
	)
	return url, nil
}

func (s *UserService) mapUpdateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

// ValidatePasswordStrength requires at least 8 characters with a lowercase
// letter, an uppercase letter, a digit and a symbol.
func ValidatePasswordStrength(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return ErrPasswordTooWeak
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
