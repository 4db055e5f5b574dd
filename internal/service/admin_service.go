package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// SeriesPoint is one chart bucket: a day (YYYY-MM-DD) or a month (YYYY-MM).
type SeriesPoint struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

type Dashboard struct {
	Date           string               `json:"date"`
	Quote          *models.Quote        `json:"quote"`
	StoriesForDate int64                `json:"stories_for_date"`
	StoriesTotal   int64                `json:"stories_total"`
	TopStory       *models.StoryPayload `json:"top_story"`
	UsersTotal     int64                `json:"users_total"`
	FlowersTotal   int64                `json:"flowers_total"`
	StoriesSeries  []SeriesPoint        `json:"stories_series"`
	UsersSeries    []SeriesPoint        `json:"users_series"`
	FlowersSeries  []SeriesPoint        `json:"flowers_series"`
}

type AdminService struct {
	quotes     *QuoteService
	storyRepo  *repository.StoryRepository
	userRepo   *repository.UserRepository
	flowerRepo *repository.FlowerRepository
}

func NewAdminService(
	quotes *QuoteService,
	storyRepo *repository.StoryRepository,
	userRepo *repository.UserRepository,
	flowerRepo *repository.FlowerRepository,
) *AdminService {
	return &AdminService{
		quotes:     quotes,
		storyRepo:  storyRepo,
		userRepo:   userRepo,
		flowerRepo: flowerRepo,
	}
}

// Dashboard gathers the admin panel figures for a date. Invalid dates fall
// back to today.
func (s *AdminService) Dashboard(ctx context.Context, dateInput string) (*Dashboard, error) {
	start := time.Now()

	date, err := s.quotes.Normalize(dateInput, true)
	if err != nil {
		date = s.quotes.Today()
	}

	d := &Dashboard{Date: date}

	quote, err := s.quotes.GetOrEnsureForDate(ctx, date, true)
	switch {
	case err == nil:
		d.Quote = quote
	case errors.Is(err, ErrNoQuoteAvailable):
		d.Quote = nil
	default:
		return nil, err
	}

	if d.StoriesForDate, err = s.storyRepo.CountOnDate(ctx, date); err != nil {
		return nil, err
	}
	if d.StoriesTotal, err = s.storyRepo.CountStories(ctx); err != nil {
		return nil, err
	}
	top, err := s.storyRepo.TopOfDay(ctx, date)
	if err != nil {
		return nil, err
	}
	if top != nil {
		payload := top.Payload()
		d.TopStory = &payload
	}
	if d.UsersTotal, err = s.userRepo.CountUsers(ctx); err != nil {
		return nil, err
	}
	if d.FlowersTotal, err = s.flowerRepo.CountFlowers(ctx); err != nil {
		return nil, err
	}

	now := s.quotes.Now()
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	daysSince := today.AddDate(0, -6, 0)
	monthsSince := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -11, 0)

	stamps, err := s.storyRepo.CreatedSince(ctx, daysSince.UTC())
	if err != nil {
		return nil, err
	}
	d.StoriesSeries = Bucket(stamps, loc, DateLayout)

	stamps, err = s.userRepo.CreatedSince(ctx, monthsSince.UTC())
	if err != nil {
		return nil, err
	}
	d.UsersSeries = Bucket(stamps, loc, "2006-01")

	stamps, err = s.flowerRepo.CreatedSince(ctx, daysSince.UTC())
	if err != nil {
		return nil, err
	}
	d.FlowersSeries = Bucket(stamps, loc, DateLayout)

	logger.Log.Debug("Admin dashboard built",
		zap.String("date", date),
		zap.Duration("duration", time.Since(start)),
	)
	return d, nil
}

// Bucket counts timestamps per formatted period in loc, ascending. Periods
// without events are omitted.
func Bucket(stamps []time.Time, loc *time.Location, layout string) []SeriesPoint {
	counts := make(map[string]int64)
	for _, t := range stamps {
		counts[t.In(loc).Format(layout)]++
	}

	points := make([]SeriesPoint, 0, len(counts))
	for bucket, count := range counts {
		points = append(points, SeriesPoint{Bucket: bucket, Count: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket < points[j].Bucket })
	return points
}
