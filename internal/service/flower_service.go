package service

import (
	"context"
	"strings"

	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/repository"
	"github.com/Baaaki/storyline/pkg/logger"
	"go.uber.org/zap"
)

// FlowerState is the outcome of a toggle.
type FlowerState struct {
	Flowered bool  `json:"flowered"`
	Count    int64 `json:"count"`
}

type FlowerService struct {
	flowerRepo *repository.FlowerRepository
	stories    *StoryService
	events     broker.EventBroker
}

func NewFlowerService(flowerRepo *repository.FlowerRepository, stories *StoryService, events broker.EventBroker) *FlowerService {
	return &FlowerService{
		flowerRepo: flowerRepo,
		stories:    stories,
		events:     events,
	}
}

// Toggle adds the user's flower to a story or takes it back.
func (s *FlowerService) Toggle(ctx context.Context, storyIdentifier string, userID uint) (*FlowerState, error) {
	storyID, err := s.stories.ResolveID(ctx, storyIdentifier)
	if err != nil {
		return nil, err
	}

	flowered, count, err := s.flowerRepo.Toggle(ctx, storyID, userID)
	if err != nil {
		// The story can disappear between resolve and insert.
		if ce, ok := repository.AsConstraintError(err); ok && ce.Kind == repository.ConstraintForeignKey {
			return nil, ErrStoryNotFound
		}
		logger.Log.Error("Failed to toggle flower",
			zap.Uint("story_id", storyID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("Flower toggled",
		zap.Uint("story_id", storyID),
		zap.Uint("user_id", userID),
		zap.Bool("flowered", flowered),
		zap.Int64("count", count),
	)

	if s.events != nil {
		event := broker.Event{
			Type:        broker.EventFlowerToggled,
			StoryID:     s.publicID(ctx, storyIdentifier, storyID),
			FlowerCount: &count,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			logger.Log.Warn("Failed to publish flower event", zap.Uint("story_id", storyID), zap.Error(err))
		}
	}

	return &FlowerState{Flowered: flowered, Count: count}, nil
}

// Count returns the number of flowers on a story.
func (s *FlowerService) Count(ctx context.Context, storyIdentifier string) (int64, error) {
	storyID, err := s.stories.ResolveID(ctx, storyIdentifier)
	if err != nil {
		return 0, err
	}
	return s.flowerRepo.CountForStory(ctx, storyID)
}

// HasFlower reports whether the user flowered the story.
func (s *FlowerService) HasFlower(ctx context.Context, storyID, userID uint) (bool, error) {
	return s.flowerRepo.HasFlower(ctx, storyID, userID)
}

func (s *FlowerService) publicID(ctx context.Context, identifier string, storyID uint) string {
	if !strings.ContainsRune(identifier, '-') {
		if view, err := s.stories.storyRepo.GetStoryByID(ctx, storyID); err == nil && view != nil {
			return view.PublicID
		}
	}
	return strings.ToLower(strings.TrimSpace(identifier))
}
