package broker

import (
	"context"
	"time"

	"github.com/Baaaki/storyline/internal/models"
)

// Event types carried on the live feed.
const (
	EventStoryCreated  = "story_created"
	EventFlowerToggled = "flower_toggled"
)

// Event is one live feed item.
type Event struct {
	Type        string               `json:"type"`
	StoryID     string               `json:"story_id"`
	Story       *models.StoryPayload `json:"story,omitempty"`
	FlowerCount *int64               `json:"flower_count,omitempty"`
	At          time.Time            `json:"at"`
}

// EventBroker fans events out to every server process and keeps a short
// backlog so new subscribers can catch up.
type EventBroker interface {
	Publish(ctx context.Context, event Event) error
	// Recent returns up to limit of the latest events, oldest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	// Subscribe streams events until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}
