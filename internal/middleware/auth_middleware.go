package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Baaaki/storyline/internal/session"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "session"

// Sessions loads the visitor's session, opening an anonymous one when the
// cookie is missing or no longer valid. Every page needs a CSRF token, so
// every visitor gets a session.
func Sessions(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		s, err := manager.Load(ctx, c.Request)
		if err != nil {
			logger.Log.Error("Failed to load session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		if s == nil {
			s, err = manager.Start(ctx, c.Writer)
			if err != nil {
				logger.Log.Error("Failed to start session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
				return
			}
		}

		c.Set(sessionKey, s)
		if s.Authenticated() {
			c.Set("user_id", s.UserID)
			c.Set("user_role", s.Role)
		}
		c.Next()
	}
}

// CurrentSession returns the session set by Sessions, or nil.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// SetSession replaces the request's session after login, logout or rotation.
func SetSession(c *gin.Context, s *session.Session) {
	c.Set(sessionKey, s)
	if s.Authenticated() {
		c.Set("user_id", s.UserID)
		c.Set("user_role", s.Role)
	} else {
		c.Set("user_id", uint(0))
		c.Set("user_role", "")
	}
}

// UserID returns the signed in user's id, zero for guests.
func UserID(c *gin.Context) uint {
	if s := CurrentSession(c); s.Authenticated() {
		return s.UserID
	}
	return 0
}

// RequireUser rejects guests: JSON requests get 401, page requests are sent
// to the login form.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c).Authenticated() {
			c.Next()
			return
		}

		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		target := "/login?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusSeeOther, target)
		c.Abort()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if !s.Authenticated() {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Redirect(http.StatusSeeOther, "/login?redirect="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		if !s.IsAdmin() {
			logger.Log.Warn("Admin route refused",
				zap.Uint("user_id", s.UserID),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}
