package handler

import (
	"net/http"
	"strings"

	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/internal/utils"
	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	stories *service.StoryService
	ipSalt  string
	metrics *metrics.Metrics
}

func NewStoryHandler(stories *service.StoryService, ipSalt string, m *metrics.Metrics) *StoryHandler {
	return &StoryHandler{stories: stories, ipSalt: ipSalt, metrics: m}
}

var createStoryStatus = statusTable{
	service.ErrEmptyContent:     http.StatusBadRequest,
	service.ErrNoPromptToday:    http.StatusBadRequest,
	service.ErrAlreadySubmitted: http.StatusConflict,
	service.ErrQuoteMissing:     http.StatusBadRequest,
	service.ErrTooManyWords:     http.StatusBadRequest,
	service.ErrDatabase:         http.StatusInternalServerError,
}

// Create stores today's story for the visitor. Signed in users are
// identified by account, guests by device cookie and hashed ip.
// POST /api/story
func (h *StoryHandler) Create(c *gin.Context) {
	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		badRequest(c, service.ErrEmptyContent.Error())
		return
	}

	sub := service.StorySubmission{
		Title:     c.PostForm("title"),
		Content:   content,
		Anonymous: checked(c.PostForm("anonymous")),
		GuestName: c.PostForm("guest_name"),
	}
	if uid := middleware.UserID(c); uid != 0 {
		sub.UserID = &uid
	} else {
		sub.DeviceToken = middleware.DeviceTokenFrom(c)
		if ip := c.ClientIP(); ip != "" {
			sub.IPHash = utils.HashIP(ip, h.ipSalt)
		}
	}

	story, err := h.stories.AddTodayStory(c.Request.Context(), sub)
	if err != nil {
		respondError(c, createStoryStatus, err, service.ErrDatabase.Error())
		return
	}

	h.metrics.StoriesCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{"id": story.ID, "public_id": story.PublicID})
}

// List pages through the stories of a day.
// GET /api/stories?date=&sort=top|new&page=&limit=
func (h *StoryHandler) List(c *gin.Context) {
	page, err := h.stories.ListByDate(c.Request.Context(),
		c.DefaultQuery("date", "today"),
		c.DefaultQuery("sort", "new"),
		queryInt(c, "page", 1),
		queryInt(c, "limit", service.DefaultPageLimit),
		allowFuture(c),
	)
	if err != nil {
		respondError(c, statusTable{service.ErrInvalidDateFormat: http.StatusBadRequest}, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one story by numeric or public id.
// GET /api/story?id=
func (h *StoryHandler) Get(c *gin.Context) {
	id := c.Query("id")
	if !validStoryID(id) {
		badRequest(c, "bad_request")
		return
	}

	view, err := h.stories.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, statusTable{service.ErrStoryNotFound: http.StatusNotFound}, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, view.Payload())
}
