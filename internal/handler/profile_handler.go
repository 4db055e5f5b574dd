package handler

import (
	"net/http"

	"github.com/Baaaki/storyline/internal/avatar"
	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	users *service.UserService
}

func NewProfileHandler(users *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

var (
	publicProfileStatus = statusTable{
		service.ErrUserNotFound: http.StatusNotFound,
	}
	accountStatus = statusTable{
		service.ErrUserNotFound:       http.StatusNotFound,
		service.ErrFavSentenceMissing: http.StatusUnprocessableEntity,
		service.ErrFavSentenceTooLong: http.StatusUnprocessableEntity,
		service.ErrFavBookTooLong:     http.StatusUnprocessableEntity,
		service.ErrFavAuthorTooLong:   http.StatusUnprocessableEntity,
		service.ErrUsernameRequired:   http.StatusUnprocessableEntity,
		service.ErrUsernameTooLong:    http.StatusUnprocessableEntity,
		service.ErrUsernameBadChars:   http.StatusUnprocessableEntity,
		service.ErrUsernameTaken:      http.StatusUnprocessableEntity,
		service.ErrPasswordRequired:   http.StatusUnprocessableEntity,
		service.ErrPasswordMismatch:   http.StatusUnprocessableEntity,
		service.ErrPasswordTooShort:   http.StatusUnprocessableEntity,
		service.ErrPasswordTooWeak:    http.StatusUnprocessableEntity,
		avatar.ErrTooLarge:            http.StatusUnprocessableEntity,
		avatar.ErrInvalidType:         http.StatusUnprocessableEntity,
		avatar.ErrInvalidDimensions:   http.StatusUnprocessableEntity,
		avatar.ErrProcessingFailed:    http.StatusUnprocessableEntity,
	}
)

// Profile returns a user's public profile.
// GET /api/user/:public_id/profile
func (h *ProfileHandler) Profile(c *gin.Context) {
	profile, err := h.users.ProfileData(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		respondError(c, publicProfileStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Stories lists a user's public stories.
// GET /api/user/:public_id/stories?page=&limit=
func (h *ProfileHandler) Stories(c *gin.Context) {
	page, err := h.users.Stories(c.Request.Context(),
		c.Param("public_id"),
		queryInt(c, "page", 1),
		queryInt(c, "limit", service.MaxProfileStories),
	)
	if err != nil {
		respondError(c, publicProfileStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, page)
}

// SetFavoriteQuote stores the quote shown on the user's profile.
// POST /api/me/favorite-quote
func (h *ProfileHandler) SetFavoriteQuote(c *gin.Context) {
	sentence := c.PostForm("favorite_quote_sentence")
	book := c.PostForm("favorite_quote_book")
	author := c.PostForm("favorite_quote_author")

	ctx := c.Request.Context()
	if err := h.users.SetFavoriteQuote(ctx, middleware.UserID(c), sentence, book, author); err != nil {
		respondError(c, accountStatus, err, "internal_error")
		return
	}

	user, err := h.users.GetByID(ctx, middleware.UserID(c))
	if err != nil || user == nil {
		respondError(c, accountStatus, service.ErrUserNotFound, "internal_error")
		return
	}
	fav := user.FavoriteQuote()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"favorite_quote": gin.H{
			"sentence": fav.Sentence,
			"book":     fav.Book,
			"author":   fav.Author,
		},
	})
}

// ChangeUsername renames the signed in user.
// POST /api/me/username
func (h *ProfileHandler) ChangeUsername(c *gin.Context) {
	user, err := h.users.ChangeUsername(c.Request.Context(), middleware.UserID(c), c.PostForm("username"))
	if err != nil {
		respondError(c, accountStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "username": user.Username})
}

// ChangePassword sets a new password for the signed in user.
// POST /api/me/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	err := h.users.ChangePassword(c.Request.Context(), middleware.UserID(c),
		c.PostForm("password"),
		c.PostForm("password_confirm"),
	)
	if err != nil {
		respondError(c, accountStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ChangeAvatar replaces the signed in user's avatar with the uploaded image.
// POST /api/me/avatar (multipart field "avatar")
func (h *ProfileHandler) ChangeAvatar(c *gin.Context) {
	header, err := c.FormFile("avatar")
	if err != nil {
		logger.Log.Warn("Avatar upload missing", zap.Uint("user_id", middleware.UserID(c)), zap.Error(err))
		badRequest(c, "upload_failed")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "upload_failed")
		return
	}
	defer file.Close()

	url, err := h.users.ChangeAvatar(c.Request.Context(), middleware.UserID(c), file)
	if err != nil {
		respondError(c, accountStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "avatar_url": url})
}
