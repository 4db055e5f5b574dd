package handler

import (
	"net/http"

	"github.com/Baaaki/storyline/internal/service"
	"github.com/gin-gonic/gin"
)

type PasswordResetHandler struct {
	resets *service.PasswordResetService
}

func NewPasswordResetHandler(resets *service.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets}
}

var resetStatus = statusTable{
	service.ErrEmailRequired:     http.StatusUnprocessableEntity,
	service.ErrPasswordMismatch:  http.StatusUnprocessableEntity,
	service.ErrInvalidResetToken: http.StatusUnprocessableEntity,
	service.ErrPasswordRequired:  http.StatusUnprocessableEntity,
	service.ErrPasswordTooShort:  http.StatusUnprocessableEntity,
	service.ErrPasswordTooWeak:   http.StatusUnprocessableEntity,
}

// Forgot mails a reset link. Unknown addresses get the same answer as known
// ones.
// POST /password/forgot
func (h *PasswordResetHandler) Forgot(c *gin.Context) {
	if err := h.resets.RequestReset(c.Request.Context(), c.PostForm("email")); err != nil {
		respondError(c, resetStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reset sets a new password using a mailed token.
// POST /password/reset
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	err := h.resets.Reset(c.Request.Context(),
		c.PostForm("token"),
		c.PostForm("password"),
		c.PostForm("password_confirm"),
	)
	if err != nil {
		respondError(c, resetStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
