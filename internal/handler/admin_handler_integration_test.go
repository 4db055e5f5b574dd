package handler_test

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Baaaki/storyline/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func (s *RouterIntegrationTestSuite) TestAdminDashboardAccess() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	testutil.DefaultAdminUser(s.T(), s.testDB.DB)

	// Guests
	guest := s.newBrowser()
	w := guest.get("/api/admin/dashboard")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	page := guest.get("/admin")
	assert.Equal(s.T(), http.StatusSeeOther, page.Code)
	assert.Equal(s.T(), "/login?redirect=%2Fadmin", page.Header().Get("Location"))

	// Regular users
	user := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, user.login("testuser", testutil.DefaultPassword).Code)
	w = user.get("/api/admin/dashboard")
	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	assert.Equal(s.T(), "forbidden", testutil.DecodeJSON(s.T(), w)["error"])

	// Admins
	admin := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, admin.login("admin", testutil.AdminPassword).Code)
	w = admin.get("/api/admin/dashboard")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := testutil.DecodeJSON(s.T(), w)
	assert.Equal(s.T(), float64(2), body["users_total"])
	assert.Equal(s.T(), http.StatusOK, admin.get("/admin").Code)
}

func (s *RouterIntegrationTestSuite) TestAdminSeesFuturePrompts() {
	testutil.DefaultTestUser(s.T(), s.testDB.DB)
	testutil.DefaultAdminUser(s.T(), s.testDB.DB)
	testutil.CreateTestQuote(s.T(), s.testDB.DB, "2999-01-01", "Not yet")

	user := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, user.login("testuser", testutil.DefaultPassword).Code)
	// Future dates collapse to today for everyone else
	assert.Equal(s.T(), http.StatusNotFound, user.get("/api/quote?date=2999-01-01").Code)

	admin := s.newBrowser()
	s.Require().Equal(http.StatusSeeOther, admin.login("admin", testutil.AdminPassword).Code)
	w := admin.get("/api/quote?date=2999-01-01")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "Not yet", testutil.DecodeJSON(s.T(), w)["sentence"])
}

func (s *RouterIntegrationTestSuite) TestHealthAndMetrics() {
	b := s.newBrowser()

	w := b.get("/health")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "ok", testutil.DecodeJSON(s.T(), w)["status"])
	assert.Empty(s.T(), b.cookies, "probes must not open sessions")

	w = b.get("/metrics")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Contains(s.T(), w.Body.String(), "storyline_http_requests_total")
}

func (s *RouterIntegrationTestSuite) TestRateLimitScope() {
	// Arrange: this address has spent its API budget for the window
	b := s.newBrowser()
	b.ip = "198.51.100.77"
	s.Require().NoError(s.testRedis.Server.Set("ratelimit:api:"+b.ip, "1000"))
	s.testRedis.Server.SetTTL("ratelimit:api:"+b.ip, 40*time.Second)

	// Act
	list := b.get("/api/stories")
	create := b.postForm("/api/story", url.Values{"content": {"Too late"}})
	random := b.get("/api/quotes/random")
	page := b.get("/register")

	// Assert
	assert.Equal(s.T(), http.StatusTooManyRequests, list.Code)
	assert.Equal(s.T(), "40", list.Header().Get("Retry-After"))
	assert.Equal(s.T(), http.StatusTooManyRequests, create.Code)
	assert.Equal(s.T(), "rate_limited", testutil.DecodeJSON(s.T(), create)["error"])
	assert.NotEqual(s.T(), http.StatusTooManyRequests, random.Code, "the quote upstream is exempt")
	assert.Equal(s.T(), http.StatusOK, page.Code, "pages are not limited")

	other := s.newBrowser()
	other.ip = "198.51.100.78"
	assert.Equal(s.T(), http.StatusOK, other.get("/api/stories").Code)
}

func (s *RouterIntegrationTestSuite) TestUnknownRoutes() {
	b := s.newBrowser()

	api := b.get("/api/nothing-here")
	assert.Equal(s.T(), http.StatusNotFound, api.Code)
	assert.Equal(s.T(), "not_found", testutil.DecodeJSON(s.T(), api)["error"])

	page := b.get("/nothing-here")
	assert.Equal(s.T(), http.StatusNotFound, page.Code)
	assert.True(s.T(), strings.Contains(page.Header().Get("Content-Type"), "text/html"))

	method := b.do(http.MethodDelete, "/health", nil, nil)
	assert.Equal(s.T(), http.StatusMethodNotAllowed, method.Code)
}

func (s *RouterIntegrationTestSuite) TestSecurityHeaders() {
	w := s.newBrowser().get("/register")

	assert.Equal(s.T(), "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(s.T(), w.Header().Get("X-Request-ID"))
	assert.NotEmpty(s.T(), w.Header().Get("Content-Security-Policy"))
}
