package handler_test

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/session"
	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/stretchr/testify/assert"
)

var resetLinkPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

// TestRegisterSuccess tests successful user registration
func (s *RouterIntegrationTestSuite) TestRegisterSuccess() {
	// Arrange
	b := s.newBrowser()

	// Act
	w := b.postForm("/register", url.Values{
		"username":         {"newuser"},
		"email":            {"NewUser@Example.com"},
		"password":         {"SecurePass123!"},
		"password_confirm": {"SecurePass123!"},
	})

	// Assert
	assert.Equal(s.T(), http.StatusCreated, w.Code)
	body := testutil.DecodeJSON(s.T(), w)
	assert.Equal(s.T(), "success", body["status"])
	user := body["user"].(map[string]interface{})
	assert.Equal(s.T(), "newuser", user["username"])
	assert.Equal(s.T(), "newuser@example.com", user["email"])
	assert.Equal(s.T(), string(models.RoleUser), user["role"])
	assert.NotEmpty(s.T(), user["public_id"])

	// The new account is signed in straight away
	b.refreshCSRF()
	me := b.postForm("/api/me/username", url.Values{"username": {"renamed"}})
	assert.Equal(s.T(), http.StatusOK, me.Code)
}

// TestRegisterValidation covers the registration error codes
func (s *RouterIntegrationTestSuite) TestRegisterValidation() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	tests := []struct {
		name string
		form url.Values
		code string
	}{
		{"bad username", url.Values{"username": {"a b"}, "email": {"x@example.com"}, "password": {"SecurePass123!"}, "password_confirm": {"SecurePass123!"}}, "invalid_username"},
		{"bad email", url.Values{"username": {"someone"}, "email": {"nope"}, "password": {"SecurePass123!"}, "password_confirm": {"SecurePass123!"}}, "invalid_email"},
		{"mismatch", url.Values{"username": {"someone"}, "email": {"x@example.com"}, "password": {"SecurePass123!"}, "password_confirm": {"Other123!"}}, "password_mismatch"},
		{"username taken", url.Values{"username": {"testuser"}, "email": {"x@example.com"}, "password": {"SecurePass123!"}, "password_confirm": {"SecurePass123!"}}, "username_taken"},
		{"email taken", url.Values{"username": {"someone"}, "email": {"TEST@example.com"}, "password": {"SecurePass123!"}, "password_confirm": {"SecurePass123!"}}, "email_taken"},
		{"weak password", url.Values{"username": {"someone"}, "email": {"x@example.com"}, "password": {"alllowercase"}, "password_confirm": {"alllowercase"}}, "password_too_weak"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.newBrowser().postForm("/register", tt.form)

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			assert.Equal(s.T(), tt.code, testutil.DecodeJSON(s.T(), w)["error"])
		})
	}
}

// TestLoginSuccess signs in by username or email and follows the redirect
func (s *RouterIntegrationTestSuite) TestLoginSuccess() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	for _, identifier := range []string{"testuser", "TEST@example.com"} {
		s.Run(identifier, func() {
			// Arrange
			b := s.newBrowser()
			b.refreshCSRF()
			before := b.cookies[session.CookieName].Value

			// Act
			w := b.postForm("/login", url.Values{
				"identifier": {identifier},
				"password":   {testutil.DefaultPassword},
				"redirect":   {"/stories"},
			})

			// Assert
			assert.Equal(s.T(), http.StatusSeeOther, w.Code)
			assert.Equal(s.T(), "/stories", w.Header().Get("Location"))
			assert.NotEqual(s.T(), before, b.cookies[session.CookieName].Value, "session must rotate on login")
		})
	}
}

// TestLoginRejectsOffsiteRedirect keeps the post-login redirect on this site
func (s *RouterIntegrationTestSuite) TestLoginRejectsOffsiteRedirect() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	w := s.newBrowser().postForm("/login", url.Values{
		"identifier": {"testuser"},
		"password":   {testutil.DefaultPassword},
		"redirect":   {"//evil.example.com"},
	})

	assert.Equal(s.T(), http.StatusSeeOther, w.Code)
	assert.Equal(s.T(), "/dashboard", w.Header().Get("Location"))
}

// TestLoginInvalidCredentials tests login with wrong password
func (s *RouterIntegrationTestSuite) TestLoginInvalidCredentials() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)

	w := s.newBrowser().login("testuser", "WrongPass123!")

	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "invalid_credentials", testutil.DecodeJSON(s.T(), w)["error"])
}

// TestLoginThrottle locks an ip out after repeated failures, even for the
// right password
func (s *RouterIntegrationTestSuite) TestLoginThrottle() {
	// Arrange
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()
	for i := 0; i < testMaxFailures; i++ {
		w := b.login("testuser", "WrongPass123!")
		s.Require().Equal(http.StatusUnauthorized, w.Code)
	}

	// Act
	w := b.login("testuser", testutil.DefaultPassword)

	// Assert
	assert.Equal(s.T(), http.StatusTooManyRequests, w.Code)
	body := testutil.DecodeJSON(s.T(), w)
	assert.Equal(s.T(), "too_many_attempts", body["error"])
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	s.Require().NoError(err)
	assert.Greater(s.T(), retry, 0)
	assert.Equal(s.T(), float64(retry), body["retry_after"])

	// Another address is unaffected
	other := s.newBrowser()
	other.ip = "198.51.100.7"
	assert.Equal(s.T(), http.StatusSeeOther, other.login("testuser", testutil.DefaultPassword).Code)
}

// TestLoginWithoutCSRF rejects forms that do not carry the session token
func (s *RouterIntegrationTestSuite) TestLoginWithoutCSRF() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()
	b.refreshCSRF()
	b.csrf = "forged"

	w := b.postForm("/login", url.Values{"identifier": {"testuser"}, "password": {testutil.DefaultPassword}})

	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	assert.Equal(s.T(), "csrf_failed", testutil.DecodeJSON(s.T(), w)["error"])
}

// TestLogout ends the session
func (s *RouterIntegrationTestSuite) TestLogout() {
	// Arrange
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, b.login("testuser", testutil.DefaultPassword).Code)

	// Act
	w := b.postForm("/logout", nil)

	// Assert
	assert.Equal(s.T(), http.StatusNoContent, w.Code)
	dashboard := b.get("/dashboard")
	assert.Equal(s.T(), http.StatusSeeOther, dashboard.Code)
	assert.Equal(s.T(), "/login?redirect=%2Fdashboard", dashboard.Header().Get("Location"))
}

// TestPasswordReset walks the forgot and reset flow through the mail outbox
func (s *RouterIntegrationTestSuite) TestPasswordReset() {
	// Arrange
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	b := s.newBrowser()

	// Act: request a link
	w := b.postForm("/password/forgot", url.Values{"email": {"test@example.com"}})
	s.Require().Equal(http.StatusOK, w.Code)

	mails, err := s.mail.ReadAll()
	s.Require().NoError(err)
	s.Require().NotEmpty(mails)
	m := resetLinkPattern.FindStringSubmatch(mails[len(mails)-1].Body)
	s.Require().Len(m, 2)
	token := m[1]

	// The reset page only offers the form for a live token
	page := b.get("/password/reset?token=" + token)
	assert.Equal(s.T(), http.StatusOK, page.Code)
	assert.Contains(s.T(), page.Body.String(), `name="token"`)

	// Act: set the new password
	w = b.postForm("/password/reset", url.Values{
		"token":            {token},
		"password":         {"Changed123456!"},
		"password_confirm": {"Changed123456!"},
	})

	// Assert
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), http.StatusUnauthorized, s.newBrowser().login("testuser", testutil.DefaultPassword).Code)
	assert.Equal(s.T(), http.StatusSeeOther, s.newBrowser().login("testuser", "Changed123456!").Code)

	// Tokens are single use
	again := b.postForm("/password/reset", url.Values{
		"token":            {token},
		"password":         {"Another123456!"},
		"password_confirm": {"Another123456!"},
	})
	assert.Equal(s.T(), http.StatusUnprocessableEntity, again.Code)
	assert.Equal(s.T(), "invalid_or_expired_token", testutil.DecodeJSON(s.T(), again)["error"])
}

// TestForgotPasswordUnknownEmail answers like a known address
func (s *RouterIntegrationTestSuite) TestForgotPasswordUnknownEmail() {
	w := s.newBrowser().postForm("/password/forgot", url.Values{"email": {"nobody@example.com"}})

	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "ok", testutil.DecodeJSON(s.T(), w)["status"])
}
