package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxTitleLength     = 120
	maxGuestNameLength = 60

	DefaultPageLimit = 10
	MaxPageLimit     = 50
)

// StorySubmission is one story as posted by a visitor. UserID is nil for
// guests, who are identified by DeviceToken and IPHash instead.
type StorySubmission struct {
	UserID      *uint
	Title       string
	Content     string
	Anonymous   bool
	GuestName   string
	DeviceToken string
	IPHash      string
}

// StoryPage is one page of a listing.
type StoryPage struct {
	Items       []models.StoryPayload `json:"items"`
	Page        int                   `json:"page"`
	Limit       int                   `json:"limit"`
	TotalForDay int64                 `json:"total_for_day"`
	Date        string                `json:"-"`
}

type StoryService struct {
	storyRepo    *repository.StoryRepository
	quotes       *QuoteService
	events       broker.EventBroker
	maxWords     int
	requireQuote bool
}

func NewStoryService(
	storyRepo *repository.StoryRepository,
	quotes *QuoteService,
	events broker.EventBroker,
	maxWords int,
	requireQuote bool,
) *StoryService {
	return &StoryService{
		storyRepo:    storyRepo,
		quotes:       quotes,
		events:       events,
		maxWords:     maxWords,
		requireQuote: requireQuote,
	}
}

// AddTodayStory stores a story for today's prompt. A second story from the
// same user, device or ip for the same prompt fails with ErrAlreadySubmitted.
func (s *StoryService) AddTodayStory(ctx context.Context, sub StorySubmission) (*models.Story, error) {
	start := time.Now()

	content := strings.TrimSpace(sub.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	prompt, err := s.quotes.GetOrEnsureForDate(ctx, "today", false)
	if err != nil {
		logger.Log.Warn("No prompt for today", zap.Error(err))
		return nil, ErrNoPromptToday
	}

	words := models.CountWords(content)
	if s.maxWords > 0 && words > s.maxWords {
		logger.Log.Warn("Story rejected: too many words",
			zap.Int("words", words),
			zap.Int("max_words", s.maxWords),
		)
		return nil, ErrTooManyWords
	}
	if s.requireQuote && !models.ContainsSentence(content, prompt.Sentence) {
		logger.Log.Warn("Story rejected: prompt sentence missing", zap.Uint("prompt_id", prompt.ID))
		return nil, ErrQuoteMissing
	}

	story := &models.Story{
		PublicID:    uuid.NewString(),
		PromptID:    prompt.ID,
		Title:       optionalText(sub.Title, maxTitleLength),
		Content:     content,
		IsAnonymous: sub.Anonymous,
		WordCount:   words,
	}
	if sub.UserID != nil {
		story.UserID = sub.UserID
	} else {
		story.DeviceToken = optionalText(sub.DeviceToken, 64)
		story.IPHash = optionalText(sub.IPHash, 64)
		if !sub.Anonymous {
			story.GuestName = optionalText(sub.GuestName, maxGuestNameLength)
		}
	}

	if err := s.storyRepo.CreateStory(ctx, story); err != nil {
		if repository.IsUniqueViolation(err,
			repository.ConstraintStoryUserPerDay,
			repository.ConstraintStoryDevicePerDay,
			repository.ConstraintStoryIPPerDay,
		) {
			logger.Log.Warn("Story rejected: already submitted today",
				zap.Uint("prompt_id", prompt.ID),
				zap.Bool("authenticated", sub.UserID != nil),
			)
			return nil, ErrAlreadySubmitted
		}
		logger.Log.Error("Failed to create story",
			zap.Uint("prompt_id", prompt.ID),
			zap.Error(err),
		)
		return nil, ErrDatabase
	}

	logger.Log.Info("Story created",
		zap.Uint("story_id", story.ID),
		zap.Uint("prompt_id", prompt.ID),
		zap.Int("words", words),
		zap.Duration("duration", time.Since(start)),
	)

	s.publishCreated(ctx, story.ID)
	return story, nil
}

func (s *StoryService) publishCreated(ctx context.Context, storyID uint) {
	if s.events == nil {
		return
	}
	view, err := s.storyRepo.GetStoryByID(ctx, storyID)
	if err != nil || view == nil {
		logger.Log.Warn("Failed to load story for feed", zap.Uint("story_id", storyID), zap.Error(err))
		return
	}
	payload := view.Payload()
	event := broker.Event{Type: broker.EventStoryCreated, StoryID: view.PublicID, Story: &payload}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Log.Warn("Failed to publish story event", zap.Uint("story_id", storyID), zap.Error(err))
	}
}

// ListByDate returns a page of stories for the prompt of a date. Unknown sort
// orders fall back to newest first; page and limit are clamped.
func (s *StoryService) ListByDate(ctx context.Context, dateInput, sort string, page, limit int, allowFuture bool) (*StoryPage, error) {
	date, err := s.quotes.Normalize(dateInput, allowFuture)
	if err != nil {
		return nil, err
	}
	if sort != repository.SortTop {
		sort = repository.SortNew
	}
	page, limit = clampPage(page, limit, MaxPageLimit)

	views, err := s.storyRepo.ListByDate(ctx, date, sort, limit, (page-1)*limit)
	if err != nil {
		logger.Log.Error("Failed to list stories", zap.String("date", date), zap.Error(err))
		return nil, err
	}
	total, err := s.storyRepo.CountOnDate(ctx, date)
	if err != nil {
		return nil, err
	}

	return &StoryPage{
		Items:       models.Payloads(views),
		Page:        page,
		Limit:       limit,
		TotalForDay: total,
		Date:        date,
	}, nil
}

// Get looks a story up by numeric id or public id.
func (s *StoryService) Get(ctx context.Context, identifier string) (*models.StoryView, error) {
	identifier = strings.TrimSpace(identifier)

	var view *models.StoryView
	var err error
	if id, convErr := strconv.ParseUint(identifier, 10, 64); convErr == nil {
		view, err = s.storyRepo.GetStoryByID(ctx, uint(id))
	} else if _, parseErr := uuid.Parse(identifier); parseErr == nil {
		view, err = s.storyRepo.GetStoryByPublicID(ctx, strings.ToLower(identifier))
	} else {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrStoryNotFound
	}
	return view, nil
}

// ResolveID maps a numeric id or public id to the story's primary key.
func (s *StoryService) ResolveID(ctx context.Context, identifier string) (uint, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil && id > 0 {
		exists, err := s.storyRepo.Exists(ctx, uint(id))
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrStoryNotFound
		}
		return uint(id), nil
	}
	if _, err := uuid.Parse(identifier); err != nil {
		return 0, ErrStoryNotFound
	}
	id, err := s.storyRepo.ResolveID(ctx, strings.ToLower(identifier))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrStoryNotFound
	}
	return id, nil
}

// TodayForUser returns the user's story for today's prompt, or nil.
func (s *StoryService) TodayForUser(ctx context.Context, userID uint) (*models.StoryView, error) {
	prompt, err := s.quotes.GetToday(ctx)
	if err != nil || prompt == nil {
		return nil, err
	}
	return s.storyRepo.GetStoryForUserOnPrompt(ctx, prompt.ID, userID)
}

func clampPage(page, limit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// optionalText trims s and cuts it to max runes; empty input yields nil.
func optionalText(s string, max int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.TrimSpace(models.TruncateRunes(s, max))
	return &s
}
