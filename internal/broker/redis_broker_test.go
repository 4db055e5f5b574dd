package broker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventBroker_RecentKeepsLatestOldestFirst(t *testing.T) {
	// Arrange
	tr := testutil.SetupTestRedis(t)
	defer tr.Teardown(t)
	b := NewRedisEventBroker(tr.Client)
	ctx := context.Background()

	// Act
	for i := 0; i < MaxRecent+5; i++ {
		require.NoError(t, b.Publish(ctx, Event{Type: EventStoryCreated, StoryID: fmt.Sprintf("s%d", i)}))
	}
	events, err := b.Recent(ctx, 0)

	// Assert
	require.NoError(t, err)
	require.Len(t, events, MaxRecent)
	assert.Equal(t, "s5", events[0].StoryID)
	assert.Equal(t, fmt.Sprintf("s%d", MaxRecent+4), events[len(events)-1].StoryID)
	assert.False(t, events[0].At.IsZero())

	few, err := b.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, few, 3)
	assert.Equal(t, fmt.Sprintf("s%d", MaxRecent+4), few[2].StoryID)
}

func TestRedisEventBroker_SubscribeReceivesPublished(t *testing.T) {
	// Arrange
	tr := testutil.SetupTestRedis(t)
	defer tr.Teardown(t)
	b := NewRedisEventBroker(tr.Client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	count := int64(3)

	// Act
	require.NoError(t, b.Publish(context.Background(), Event{Type: EventFlowerToggled, StoryID: "abc", FlowerCount: &count}))

	// Assert
	select {
	case event := <-events:
		assert.Equal(t, EventFlowerToggled, event.Type)
		assert.Equal(t, "abc", event.StoryID)
		require.NotNil(t, event.FlowerCount)
		assert.Equal(t, int64(3), *event.FlowerCount)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
