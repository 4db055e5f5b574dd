package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/internal/session"
	"github.com/Baaaki/storyline/internal/throttle"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users    *service.UserService
	sessions *session.Manager
	throttle *throttle.Throttle
	metrics  *metrics.Metrics
}

func NewAuthHandler(users *service.UserService, sessions *session.Manager, t *throttle.Throttle, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		throttle: t,
		metrics:  m,
	}
}

var registerStatus = statusTable{
	service.ErrInvalidUsername:  http.StatusBadRequest,
	service.ErrInvalidEmail:     http.StatusBadRequest,
	service.ErrPasswordMismatch: http.StatusBadRequest,
	service.ErrUsernameTaken:    http.StatusBadRequest,
	service.ErrEmailTaken:       http.StatusBadRequest,
	service.ErrPasswordRequired: http.StatusBadRequest,
	service.ErrPasswordTooShort: http.StatusBadRequest,
	service.ErrPasswordTooWeak:  http.StatusBadRequest,
}

// Login checks credentials and signs the visitor in.
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	ip := c.ClientIP()
	identifier := c.PostForm("identifier")

	// 1. Throttle, before any password work
	wait, err := h.throttle.Check(ctx, ip)
	if err != nil {
		logger.Log.Warn("Login throttle unavailable", zap.String("ip", ip), zap.Error(err))
	}
	if wait > 0 {
		seconds := throttle.RetryAfterSeconds(wait)
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too_many_attempts",
			"retry_after": seconds,
		})
		return
	}

	logger.Log.Info("User login attempt", zap.String("ip", ip))

	// 2. Credentials
	user, err := h.users.Login(ctx, identifier, c.PostForm("password"))
	if err != nil {
		if !errors.Is(err, service.ErrBadCredentials) {
			respondError(c, nil, err, "internal_error")
			return
		}
		h.metrics.LoginFailures.Inc()
		if _, ferr := h.throttle.Fail(ctx, ip); ferr != nil {
			logger.Log.Warn("Failed to record login failure", zap.String("ip", ip), zap.Error(ferr))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	// 3. Fresh session and CSRF token for the signed in user
	if err := h.throttle.Reset(ctx, ip); err != nil {
		logger.Log.Warn("Failed to reset login throttle", zap.String("ip", ip), zap.Error(err))
	}
	if err := h.signIn(c, user); err != nil {
		respondError(c, nil, err, "internal_error")
		return
	}

	c.Redirect(http.StatusSeeOther, safeRedirect(c.PostForm("redirect")))
}

// Logout destroys the session.
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if err := h.sessions.Destroy(c.Request.Context(), c.Writer, s); err != nil {
		respondError(c, nil, err, "internal_error")
		return
	}
	if s != nil {
		logger.Log.Info("User logged out", zap.Uint("user_id", s.UserID))
	}
	c.Status(http.StatusNoContent)
}

// Register creates an account and signs it in.
// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	logger.Log.Info("User registration attempt",
		zap.String("username", c.PostForm("username")),
		zap.String("ip", c.ClientIP()),
	)

	user, err := h.users.Register(c.Request.Context(),
		c.PostForm("username"),
		c.PostForm("email"),
		c.PostForm("password"),
		c.PostForm("password_confirm"),
	)
	if err != nil {
		respondError(c, registerStatus, err, "internal_error")
		return
	}

	if err := h.signIn(c, user); err != nil {
		respondError(c, nil, err, "internal_error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"user": gin.H{
			"id":         user.ID,
			"public_id":  user.PublicID,
			"username":   user.Username,
			"email":      user.Email,
			"role":       user.Role,
			"avatar_url": user.AvatarURL(),
		},
	})
}

func (h *AuthHandler) signIn(c *gin.Context, user *models.User) error {
	s, err := h.sessions.Rotate(c.Request.Context(), c.Writer, middleware.CurrentSession(c), user.ID, user.Role)
	if err != nil {
		return err
	}
	middleware.SetSession(c, s)
	return nil
}
