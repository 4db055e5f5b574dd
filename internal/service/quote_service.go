package service

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/quotebook"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// QuoteFetcher retrieves the quote for a date from the quote endpoint.
type QuoteFetcher interface {
	FetchForDate(ctx context.Context, date string) (*quotebook.Fetched, error)
}

type QuoteService struct {
	quoteRepo *repository.QuoteRepository
	fetcher   QuoteFetcher
	location  *time.Location
	now       func() time.Time
}

func NewQuoteService(quoteRepo *repository.QuoteRepository, fetcher QuoteFetcher, location *time.Location, now func() time.Time) *QuoteService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &QuoteService{
		quoteRepo: quoteRepo,
		fetcher:   fetcher,
		location:  location,
		now:       now,
	}
}

// Now is the current time in the configured timezone.
func (s *QuoteService) Now() time.Time {
	return s.now().In(s.location)
}

// Today is today's date in the configured timezone.
func (s *QuoteService) Today() string {
	return s.Now().Format(DateLayout)
}

func (s *QuoteService) Normalize(input string, allowFuture bool) (string, error) {
	return NormalizeDate(input, s.Now(), allowFuture)
}

// GetOrEnsureForDate returns the prompt for the date, fetching and storing it
// first when no row exists yet.
func (s *QuoteService) GetOrEnsureForDate(ctx context.Context, input string, allowFuture bool) (*models.Quote, error) {
	start := time.Now()

	date, err := s.Normalize(input, allowFuture)
	if err != nil {
		logger.Log.Warn("Invalid quote date", zap.String("input", input))
		return nil, err
	}

	quote, err := s.quoteRepo.GetByDate(ctx, date)
	if err != nil {
		logger.Log.Error("Failed to load quote", zap.String("date", date), zap.Error(err))
		return nil, err
	}
	if quote != nil {
		return quote, nil
	}

	logger.Log.Debug("No quote cached, fetching", zap.String("date", date))

	fetched, err := s.fetcher.FetchForDate(ctx, date)
	if err != nil {
		logger.Log.Warn("Quote fetch failed", zap.String("date", date), zap.Error(err))
		return nil, ErrNoQuoteAvailable
	}
	if fetched == nil || strings.TrimSpace(fetched.Sentence) == "" {
		logger.Log.Warn("Quote fetch returned no sentence", zap.String("date", date))
		return nil, ErrNoQuoteAvailable
	}

	candidate := &models.Quote{
		Date:         date,
		Sentence:     strings.TrimSpace(fetched.Sentence),
		SourceBook:   fetched.Book,
		SourceAuthor: fetched.Author,
		SourceID:     fetched.SourceID,
		FetchedAt:    s.now().UTC(),
	}
	if err := s.quoteRepo.InsertIfAbsent(ctx, candidate); err != nil {
		logger.Log.Error("Failed to insert quote", zap.String("date", date), zap.Error(err))
		return nil, err
	}

	// Another request may have won the insert; the stored row is authoritative.
	quote, err = s.quoteRepo.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		logger.Log.Error("Quote missing after insert", zap.String("date", date))
		return nil, ErrQuoteInsertFailed
	}

	logger.Log.Info("Quote stored for date",
		zap.String("date", date),
		zap.Uint("quote_id", quote.ID),
		zap.Duration("duration", time.Since(start)),
	)
	return quote, nil
}

// GetForDate returns the stored prompt for a date without creating it.
func (s *QuoteService) GetForDate(ctx context.Context, input string, allowFuture bool) (*models.Quote, error) {
	date, err := s.Normalize(input, allowFuture)
	if err != nil {
		return nil, err
	}
	return s.quoteRepo.GetByDate(ctx, date)
}

func (s *QuoteService) GetToday(ctx context.Context) (*models.Quote, error) {
	return s.quoteRepo.GetByDate(ctx, s.Today())
}
