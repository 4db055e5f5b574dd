package handler

import (
	"net/http"

	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{
		admin: admin,
	}
}

// Dashboard returns the admin figures for a date
// GET /api/admin/dashboard?date=
func (h *AdminHandler) Dashboard(c *gin.Context) {
	logger.Log.Info("Admin fetching dashboard",
		zap.Uint("admin_id", middleware.UserID(c)),
		zap.String("date", c.Query("date")),
	)

	dashboard, err := h.admin.Dashboard(c.Request.Context(), c.Query("date"))
	if err != nil {
		logger.Log.Error("Failed to build dashboard",
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_error",
		})
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
