package handler_test

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func (s *RouterIntegrationTestSuite) signedIn() *browser {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, b.login("testuser", testutil.DefaultPassword).Code)
	return b
}

func (s *RouterIntegrationTestSuite) TestAccountRequiresLogin() {
	b := s.newBrowser()

	for _, target := range []string{"/api/me/username", "/api/me/password", "/api/me/favorite-quote", "/api/me/avatar"} {
		w := b.postForm(target, url.Values{"username": {"whoever"}})
		assert.Equal(s.T(), http.StatusUnauthorized, w.Code, target)
	}
}

func (s *RouterIntegrationTestSuite) TestAccountValidation() {
	b := s.signedIn()
	testutil.CreateTestUser(s.T(), s.testDB.DB, "taken", "taken@example.com", testutil.DefaultPassword, "user")

	tests := []struct {
		name   string
		target string
		form   url.Values
		code   string
	}{
		{"empty username", "/api/me/username", url.Values{"username": {" "}}, "username_required"},
		{"long username", "/api/me/username", url.Values{"username": {strings.Repeat("a", 31)}}, "username_too_long"},
		{"bad characters", "/api/me/username", url.Values{"username": {"no spaces"}}, "username_invalid_chars"},
		{"taken username", "/api/me/username", url.Values{"username": {"taken"}}, "username_taken"},
		{"empty password", "/api/me/password", url.Values{}, "password_required"},
		{"password mismatch", "/api/me/password", url.Values{"password": {"Secure123!"}, "password_confirm": {"Secure124!"}}, "password_mismatch"},
		{"short password", "/api/me/password", url.Values{"password": {"Aa1!"}, "password_confirm": {"Aa1!"}}, "password_too_short"},
		{"missing sentence", "/api/me/favorite-quote", url.Values{"favorite_quote_book": {"Dune"}}, "favorite_quote_sentence_required"},
		{"long book", "/api/me/favorite-quote", url.Values{"favorite_quote_sentence": {"Fear is the mind-killer."}, "favorite_quote_book": {strings.Repeat("b", 256)}}, "favorite_quote_book_too_long"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := b.postForm(tt.target, tt.form)

			assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
			assert.Equal(s.T(), tt.code, testutil.DecodeJSON(s.T(), w)["error"])
		})
	}
}

func (s *RouterIntegrationTestSuite) TestAccountUpdates() {
	b := s.signedIn()

	w := b.postForm("/api/me/username", url.Values{"username": {"renamed"}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	assert.Equal(s.T(), "renamed", testutil.DecodeJSON(s.T(), w)["username"])

	w = b.postForm("/api/me/favorite-quote", url.Values{
		"favorite_quote_sentence": {"Fear is the mind-killer."},
		"favorite_quote_author":   {"Frank Herbert"},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	fav := testutil.DecodeJSON(s.T(), w)["favorite_quote"].(map[string]interface{})
	assert.Equal(s.T(), "Fear is the mind-killer.", fav["sentence"])
	assert.Equal(s.T(), "Frank Herbert", fav["author"])

	w = b.postForm("/api/me/password", url.Values{"password": {"Changed123456!"}, "password_confirm": {"Changed123456!"}})
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), http.StatusSeeOther, s.newBrowser().login("renamed", "Changed123456!").Code)
}

func (s *RouterIntegrationTestSuite) TestAvatarUpload() {
	b := s.signedIn()

	// Missing file
	w := b.multipart("/api/me/avatar", "", nil)
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), "upload_failed", testutil.DecodeJSON(s.T(), w)["error"])

	// Not an image
	w = b.multipart("/api/me/avatar", "avatar", []byte("plain text, not a picture"))
	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)

	// A real PNG is stored and served back
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48))))
	w = b.multipart("/api/me/avatar", "avatar", buf.Bytes())
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	avatarURL := testutil.DecodeJSON(s.T(), w)["avatar_url"].(string)
	assert.True(s.T(), strings.HasPrefix(avatarURL, "/uploads/avatars/"), avatarURL)

	served := b.get(avatarURL)
	assert.Equal(s.T(), http.StatusOK, served.Code)
}

func (s *RouterIntegrationTestSuite) TestPublicProfile() {
	// Arrange
	s.seedTodayQuote()
	quote, err := s.quotes.GetToday(s.T().Context())
	s.Require().NoError(err)
	user := testutil.DefaultTestUser(s.T(), s.testDB.DB)
	testutil.CreateTestStory(s.T(), s.testDB.DB, quote.ID, &user.ID, "one two three")
	b := s.newBrowser()

	// Act
	profile := b.get("/api/user/" + user.PublicID + "/profile")
	stories := b.get("/api/user/" + user.PublicID + "/stories")
	missing := b.get("/api/user/5b1f3c2e-9d4a-4f61-8c3e-2a7b9d0e1f42/profile")
	page := b.get("/user/" + user.PublicID)

	// Assert
	s.Require().Equal(http.StatusOK, profile.Code)
	stats := testutil.DecodeJSON(s.T(), profile)["stats"].(map[string]interface{})
	assert.Equal(s.T(), float64(1), stats["total_stories"])
	assert.Equal(s.T(), float64(3), stats["total_words"])
	assert.NotContains(s.T(), profile.Body.String(), "password")
	assert.NotContains(s.T(), profile.Body.String(), "test@example.com")

	s.Require().Equal(http.StatusOK, stories.Code)
	assert.Len(s.T(), testutil.DecodeJSON(s.T(), stories)["items"], 1)

	assert.Equal(s.T(), http.StatusNotFound, missing.Code)
	assert.Equal(s.T(), "not_found", testutil.DecodeJSON(s.T(), missing)["error"])
	assert.Equal(s.T(), http.StatusOK, page.Code)
}

// multipart posts a multipart form, attaching data under field when field is
// set.
func (b *browser) multipart(target, field string, data []byte) *httptest.ResponseRecorder {
	if b.csrf == "" {
		b.refreshCSRF()
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	b.s.Require().NoError(mw.WriteField("csrf", b.csrf))
	if field != "" {
		part, err := mw.CreateFormFile(field, "upload.png")
		b.s.Require().NoError(err)
		_, err = part.Write(data)
		b.s.Require().NoError(err)
	}
	b.s.Require().NoError(mw.Close())

	return b.do(http.MethodPost, target, &body, map[string]string{
		"Content-Type": mw.FormDataContentType(),
		"Accept":       "application/json",
	})
}
