package handler

import (
	"net/http"

	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/gin-gonic/gin"
)

type FlowerHandler struct {
	flowers *service.FlowerService
	metrics *metrics.Metrics
}

func NewFlowerHandler(flowers *service.FlowerService, m *metrics.Metrics) *FlowerHandler {
	return &FlowerHandler{flowers: flowers, metrics: m}
}

var flowerStatus = statusTable{
	service.ErrStoryNotFound: http.StatusNotFound,
}

// Toggle gives or takes back the user's flower.
// POST /api/story/flower?id=
func (h *FlowerHandler) Toggle(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := c.Query("id")
	if id == "" {
		id = c.PostForm("id")
	}
	if !validStoryID(id) {
		badRequest(c, "bad_request")
		return
	}

	state, err := h.flowers.Toggle(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, flowerStatus, err, "internal_error")
		return
	}

	h.metrics.FlowersToggled.Inc()
	c.JSON(http.StatusOK, state)
}

// Count returns how many flowers a story has.
// GET /api/story/flowers?id=
func (h *FlowerHandler) Count(c *gin.Context) {
	id := c.Query("id")
	if !validStoryID(id) {
		badRequest(c, "bad_request")
		return
	}

	count, err := h.flowers.Count(c.Request.Context(), id)
	if err != nil {
		respondError(c, flowerStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
