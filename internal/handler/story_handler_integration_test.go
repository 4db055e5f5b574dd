package handler_test

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func (s *RouterIntegrationTestSuite) TestCreateStoryAsGuest() {
	// Arrange
	b := s.newBrowser()
	b.refreshCSRF()

	// Act
	w := b.postForm("/api/story", url.Values{
		"title":      {"Morning"},
		"content":    {"The clocks were striking thirteen."},
		"guest_name": {"Winston"},
	})

	// Assert
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	publicID := testutil.DecodeJSON(s.T(), w)["public_id"].(string)

	got := b.get("/api/story?id=" + publicID)
	s.Require().Equal(http.StatusOK, got.Code)
	story := testutil.DecodeJSON(s.T(), got)
	assert.Equal(s.T(), "Winston", story["author_name"])
	assert.Equal(s.T(), float64(5), story["word_count"])
	assert.Nil(s.T(), story["user_public_id"])
	assert.NotContains(s.T(), got.Body.String(), "device_token")

	// Same device, same day
	again := b.postForm("/api/story", url.Values{"content": {"Another one"}})
	assert.Equal(s.T(), http.StatusConflict, again.Code)
	assert.Equal(s.T(), "already_submitted_today", testutil.DecodeJSON(s.T(), again)["error"])
}

func (s *RouterIntegrationTestSuite) TestCreateStoryOncePerUser() {
	// Arrange
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, b.login("testuser", testutil.DefaultPassword).Code)

	// Act
	first := b.postForm("/api/story", url.Values{"content": {"First try"}, "anonymous": {"1"}})
	// A fresh device and address does not help a signed in user
	b.ip = "203.0.113.9"
	delete(b.cookies, "device_token")
	second := b.postForm("/api/story", url.Values{"content": {"Second try"}})

	// Assert
	assert.Equal(s.T(), http.StatusCreated, first.Code)
	assert.Equal(s.T(), http.StatusConflict, second.Code)

	publicID := testutil.DecodeJSON(s.T(), first)["public_id"].(string)
	story := testutil.DecodeJSON(s.T(), b.get("/api/story?id="+publicID))
	assert.Equal(s.T(), true, story["is_anonymous"])
	assert.Equal(s.T(), "Anonymous", story["author_name"])
	assert.Nil(s.T(), story["username"])
}

func (s *RouterIntegrationTestSuite) TestCreateStoryErrors() {
	tests := []struct {
		name   string
		setup  func()
		form   url.Values
		status int
		code   string
	}{
		{
			name:   "empty content",
			form:   url.Values{"content": {"   "}},
			status: http.StatusBadRequest,
			code:   "empty_content",
		},
		{
			name:   "too many words",
			form:   url.Values{"content": {strings.Repeat("word ", 501)}},
			status: http.StatusBadRequest,
			code:   "too_many_words",
		},
		{
			name:   "no prompt available",
			setup:  func() { s.fetcher.set("", errors.New("quote service down")) },
			form:   url.Values{"content": {"Something"}},
			status: http.StatusBadRequest,
			code:   "no_prompt_today",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			if tt.setup != nil {
				tt.setup()
			}

			w := s.newBrowser().postForm("/api/story", tt.form)

			assert.Equal(s.T(), tt.status, w.Code)
			assert.Equal(s.T(), tt.code, testutil.DecodeJSON(s.T(), w)["error"])
		})
	}
}

func (s *RouterIntegrationTestSuite) TestGetStoryErrors() {
	b := s.newBrowser()

	bad := b.get("/api/story?id=not-an-id")
	assert.Equal(s.T(), http.StatusBadRequest, bad.Code)

	missing := b.get("/api/story?id=5b1f3c2e-9d4a-4f61-8c3e-2a7b9d0e1f42")
	assert.Equal(s.T(), http.StatusNotFound, missing.Code)
	assert.Equal(s.T(), "story_not_found", testutil.DecodeJSON(s.T(), missing)["error"])
}

func (s *RouterIntegrationTestSuite) TestListStories() {
	// Arrange
	s.seedTodayQuote()
	quote, err := s.quotes.GetToday(s.T().Context())
	s.Require().NoError(err)
	user := testutil.DefaultTestUser(s.T(), s.testDB.DB)
	older := testutil.CreateTestStory(s.T(), s.testDB.DB, quote.ID, nil, "guest words here")
	newer := testutil.CreateTestStory(s.T(), s.testDB.DB, quote.ID, &user.ID, "user words")
	testutil.CreateTestFlower(s.T(), s.testDB.DB, older.ID, user.ID)

	b := s.newBrowser()

	// Act
	top := b.get("/api/stories?sort=top")
	invalid := b.get("/api/stories?date=2025-13-45")

	// Assert
	s.Require().Equal(http.StatusOK, top.Code)
	body := testutil.DecodeJSON(s.T(), top)
	assert.Equal(s.T(), float64(2), body["total_for_day"])
	items := body["items"].([]interface{})
	s.Require().Len(items, 2)
	assert.Equal(s.T(), older.PublicID, items[0].(map[string]interface{})["public_id"])
	assert.Equal(s.T(), newer.PublicID, items[1].(map[string]interface{})["public_id"])

	assert.Equal(s.T(), http.StatusBadRequest, invalid.Code)
	assert.Equal(s.T(), "invalid_date_format", testutil.DecodeJSON(s.T(), invalid)["error"])
}

func (s *RouterIntegrationTestSuite) TestFlowerToggle() {
	// Arrange
	s.seedTodayQuote()
	quote, err := s.quotes.GetToday(s.T().Context())
	s.Require().NoError(err)
	story := testutil.CreateTestStory(s.T(), s.testDB.DB, quote.ID, nil, "a story")
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	b := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, b.login("testuser", testutil.DefaultPassword).Code)
	target := "/api/story/flower?id=" + story.PublicID

	// Act + Assert: give
	w := b.postForm(target, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := testutil.DecodeJSON(s.T(), w)
	assert.Equal(s.T(), true, body["flowered"])
	assert.Equal(s.T(), float64(1), body["count"])

	count := b.get("/api/story/flowers?id=" + story.PublicID)
	assert.Equal(s.T(), float64(1), testutil.DecodeJSON(s.T(), count)["count"])

	// Act + Assert: take back
	w = b.postForm(target, nil)
	body = testutil.DecodeJSON(s.T(), w)
	assert.Equal(s.T(), false, body["flowered"])
	assert.Equal(s.T(), float64(0), body["count"])
}

func (s *RouterIntegrationTestSuite) TestFlowerToggleErrors() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	guest := s.newBrowser()
	w := guest.postForm("/api/story/flower?id=1", nil)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "unauthorized", testutil.DecodeJSON(s.T(), w)["error"])

	// CSRF runs before the sign-in check
	forged := s.newBrowser()
	forged.refreshCSRF()
	forged.csrf = "forged"
	assert.Equal(s.T(), http.StatusForbidden, forged.postForm("/api/story/flower?id=1", nil).Code)

	user := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, user.login("testuser", testutil.DefaultPassword).Code)
	assert.Equal(s.T(), http.StatusBadRequest, user.postForm("/api/story/flower?id=abc", nil).Code)
	missing := user.postForm("/api/story/flower?id=999", nil)
	assert.Equal(s.T(), http.StatusNotFound, missing.Code)
	assert.Equal(s.T(), "story_not_found", testutil.DecodeJSON(s.T(), missing)["error"])
}

func (s *RouterIntegrationTestSuite) TestQuoteToday() {
	b := s.newBrowser()

	// Nothing stored yet
	w := b.get("/api/quote/today")
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	assert.Equal(s.T(), "no_quote_today", testutil.DecodeJSON(s.T(), w)["error"])

	// Fetched and stored on demand
	w = b.postForm("/api/quote/today", nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(s.T(), "It was a bright cold day in April", testutil.DecodeJSON(s.T(), w)["sentence"])

	w = b.get("/api/quote/today")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), s.quotes.Today(), testutil.DecodeJSON(s.T(), w)["date"])
}

func (s *RouterIntegrationTestSuite) TestQuoteByDate() {
	testutil.CreateTestQuote(s.T(), s.testDB.DB, "2025-03-01", "Call me Ishmael")
	b := s.newBrowser()

	tests := []struct {
		target string
		status int
		key    string
		want   string
	}{
		{"/api/quote?date=2025-03-01", http.StatusOK, "sentence", "Call me Ishmael"},
		{"/api/quote", http.StatusBadRequest, "error", "missing_date"},
		{"/api/quote?date=03/01/2025", http.StatusBadRequest, "error", "invalid_date_format"},
		{"/api/quote?date=2025-02-01", http.StatusNotFound, "error", "no_quote_for_date"},
	}
	for _, tt := range tests {
		s.Run(tt.target, func() {
			w := b.get(tt.target)

			assert.Equal(s.T(), tt.status, w.Code)
			assert.Equal(s.T(), tt.want, testutil.DecodeJSON(s.T(), w)[tt.key])
		})
	}
}

func (s *RouterIntegrationTestSuite) TestQuoteInsertFailure() {
	s.Require().NoError(s.testDB.DB.Exec(`CREATE TRIGGER drop_prompt_insert BEFORE INSERT ON daily_prompts
		BEGIN
			SELECT RAISE(IGNORE);
		END`).Error)
	defer s.testDB.DB.Exec("DROP TRIGGER IF EXISTS drop_prompt_insert")
	b := s.newBrowser()

	byDate := b.postForm("/api/quote?date=2025-03-01", nil)
	today := b.postForm("/api/quote/today", nil)

	assert.Equal(s.T(), http.StatusInternalServerError, byDate.Code)
	assert.Equal(s.T(), "quote_insert_failed", testutil.DecodeJSON(s.T(), byDate)["error"])
	assert.Equal(s.T(), http.StatusBadRequest, today.Code)
	assert.Equal(s.T(), "quote_insert_failed", testutil.DecodeJSON(s.T(), today)["error"])
}

func (s *RouterIntegrationTestSuite) TestStoryPage() {
	// Arrange
	s.seedTodayQuote()
	quote, err := s.quotes.GetToday(s.T().Context())
	s.Require().NoError(err)
	story := testutil.CreateTestStory(s.T(), s.testDB.DB, quote.ID, nil, "<script>alert(1)</script>")
	b := s.newBrowser()

	// Act
	w := b.get("/story/" + story.PublicID)
	missing := b.get("/story/not-a-uuid")

	// Assert
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.NotContains(s.T(), w.Body.String(), "<script>alert(1)</script>")
	assert.Equal(s.T(), http.StatusNotFound, missing.Code)
}
