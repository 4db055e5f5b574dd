package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func (s *RouterIntegrationTestSuite) dialFeed(server *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	target := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/feed"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(target, header)
}

func (s *RouterIntegrationTestSuite) TestFeedReplaysAndStreams() {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.router.Feed.Run(ctx)

	server := httptest.NewServer(s.router.Engine)
	defer server.Close()

	b := s.newBrowser()
	first := b.postForm("/api/story", url.Values{"content": {"Before anyone listened"}})
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())
	firstID := testutil.DecodeJSON(s.T(), first)["public_id"].(string)

	// Act: connect after the story was posted
	conn, _, err := s.dialFeed(server, "")
	s.Require().NoError(err)
	defer conn.Close()

	events := make(chan broker.Event, 16)
	go func() {
		defer close(events)
		for {
			var ev broker.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			events <- ev
		}
	}()

	// Assert: the backlog is replayed
	select {
	case event := <-events:
		assert.Equal(s.T(), broker.EventStoryCreated, event.Type)
		assert.Equal(s.T(), firstID, event.StoryID)
		s.Require().NotNil(event.Story)
		assert.Equal(s.T(), "Before anyone listened", event.Story.Content)
	case <-time.After(5 * time.Second):
		s.FailNow("no replayed event")
	}

	// Act: a flower arrives while connected
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	user := s.newBrowser()
	user.ip = "198.51.100.20"
	s.Require().Equal(http.StatusSeeOther, user.login("testuser", testutil.DefaultPassword).Code)

	// The live subscription may attach a moment after Run starts, so keep
	// toggling until an event comes through.
	var got *broker.Event
	s.Eventually(func() bool {
		user.postForm("/api/story/flower?id="+firstID, nil)
		deadline := time.After(200 * time.Millisecond)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				if ev.Type == broker.EventFlowerToggled {
					got = &ev
					return true
				}
			case <-deadline:
				return false
			}
		}
	}, 5*time.Second, 50*time.Millisecond)

	// Assert
	s.Require().NotNil(got)
	assert.Equal(s.T(), firstID, got.StoryID)
	s.Require().NotNil(got.FlowerCount)
	assert.Equal(s.T(), 1, s.router.Feed.ClientCount())
}

func (s *RouterIntegrationTestSuite) TestFeedRejectsForeignOrigin() {
	server := httptest.NewServer(s.router.Engine)
	defer server.Close()

	conn, resp, err := s.dialFeed(server, "https://evil.example.com")

	s.Require().Error(err)
	if conn != nil {
		conn.Close()
	}
	s.Require().NotNil(resp)
	assert.Equal(s.T(), http.StatusForbidden, resp.StatusCode)
}
