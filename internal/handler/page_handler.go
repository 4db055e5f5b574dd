package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/models"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PageHandler renders the server side pages. Every page carries the
// session's CSRF token for its forms and the browser script.
type PageHandler struct {
	quotes   *service.QuoteService
	stories  *service.StoryService
	flowers  *service.FlowerService
	users    *service.UserService
	admin    *service.AdminService
	resets   *service.PasswordResetService
	maxWords int
}

func NewPageHandler(
	quotes *service.QuoteService,
	stories *service.StoryService,
	flowers *service.FlowerService,
	users *service.UserService,
	admin *service.AdminService,
	resets *service.PasswordResetService,
	maxWords int,
) *PageHandler {
	return &PageHandler{
		quotes:   quotes,
		stories:  stories,
		flowers:  flowers,
		users:    users,
		admin:    admin,
		resets:   resets,
		maxWords: maxWords,
	}
}

// data is the common template context.
func (h *PageHandler) data(c *gin.Context, title string) gin.H {
	data := gin.H{
		"Title":   title,
		"CSRF":    middleware.CSRFToken(c),
		"User":    nil,
		"IsAdmin": false,
	}
	if uid := middleware.UserID(c); uid != 0 {
		user, err := h.users.GetByID(c.Request.Context(), uid)
		if err != nil {
			logger.Log.Warn("Failed to load page user", zap.Uint("user_id", uid), zap.Error(err))
		}
		if user != nil {
			public := service.NewPublicUser(user)
			data["User"] = &public
			data["IsAdmin"] = user.IsAdmin()
		}
	}
	return data
}

func (h *PageHandler) renderError(c *gin.Context, status int, title, message string) {
	data := h.data(c, title)
	data["Message"] = message
	c.HTML(status, "error.html", data)
}

// Index shows today's prompt and the submission form.
// GET /
func (h *PageHandler) Index(c *gin.Context) {
	data := h.data(c, "Today")

	quote, err := h.quotes.GetOrEnsureForDate(c.Request.Context(), "today", false)
	if err != nil {
		logger.Log.Warn("No prompt for index page", zap.Error(err))
		quote = nil
	}
	data["Quote"] = quote
	data["MaxWords"] = h.maxWords

	c.HTML(http.StatusOK, "index.html", data)
}

// Dashboard is the signed in user's home.
// GET /dashboard
func (h *PageHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	data := h.data(c, "Dashboard")
	if data["User"] == nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	quote, err := h.quotes.GetToday(ctx)
	if err != nil {
		logger.Log.Warn("Failed to load today's prompt", zap.Error(err))
	}
	data["Quote"] = quote

	var mine *models.StoryPayload
	if view, err := h.stories.TodayForUser(ctx, middleware.UserID(c)); err != nil {
		logger.Log.Warn("Failed to load user's story", zap.Error(err))
	} else if view != nil {
		payload := view.Payload()
		mine = &payload
	}
	data["MyStory"] = mine

	c.HTML(http.StatusOK, "dashboard.html", data)
}

// GET /login
func (h *PageHandler) Login(c *gin.Context) {
	if middleware.UserID(c) != 0 {
		c.Redirect(http.StatusSeeOther, "/dashboard")
		return
	}
	data := h.data(c, "Log in")
	data["Redirect"] = safeRedirect(c.Query("redirect"))
	c.HTML(http.StatusOK, "login.html", data)
}

// GET /register
func (h *PageHandler) Register(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.data(c, "Register"))
}

// GET /password/forgot
func (h *PageHandler) ForgotPassword(c *gin.Context) {
	c.HTML(http.StatusOK, "password_forgot.html", h.data(c, "Forgot password"))
}

// ResetPassword shows the new password form for a valid token only.
// GET /password/reset?token=
func (h *PageHandler) ResetPassword(c *gin.Context) {
	token := c.Query("token")
	valid, err := h.resets.ValidToken(c.Request.Context(), token)
	if err != nil {
		logger.Log.Error("Failed to check reset token", zap.Error(err))
		valid = false
	}

	data := h.data(c, "Reset password")
	data["Token"] = token
	data["Valid"] = valid
	c.HTML(http.StatusOK, "password_reset.html", data)
}

// Stories lists the stories of a day.
// GET /stories?date=&sort=&page=
func (h *PageHandler) Stories(c *gin.Context) {
	ctx := c.Request.Context()
	future := allowFuture(c)

	date, err := h.quotes.Normalize(c.DefaultQuery("date", "today"), future)
	if err != nil {
		date = h.quotes.Today()
	}
	sort := c.DefaultQuery("sort", "new")
	if sort != "top" {
		sort = "new"
	}
	page := queryInt(c, "page", 1)

	listing, err := h.stories.ListByDate(ctx, date, sort, page, service.DefaultPageLimit, future)
	if err != nil {
		logger.Log.Error("Failed to list stories", zap.String("date", date), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong", "The stories could not be loaded.")
		return
	}
	quote, err := h.quotes.GetForDate(ctx, date, future)
	if err != nil {
		logger.Log.Warn("Failed to load prompt for stories page", zap.String("date", date), zap.Error(err))
	}

	data := h.data(c, "Stories")
	data["Date"] = date
	data["Sort"] = sort
	data["Quote"] = quote
	data["Listing"] = listing
	data["Live"] = date == h.quotes.Today() && sort == "new" && listing.Page == 1
	data["PrevPage"] = 0
	if listing.Page > 1 {
		data["PrevPage"] = listing.Page - 1
	}
	data["NextPage"] = 0
	if int64(listing.Page*listing.Limit) < listing.TotalForDay {
		data["NextPage"] = listing.Page + 1
	}

	c.HTML(http.StatusOK, "stories.html", data)
}

// GET /admin?date=
func (h *PageHandler) Admin(c *gin.Context) {
	dashboard, err := h.admin.Dashboard(c.Request.Context(), c.Query("date"))
	if err != nil {
		logger.Log.Error("Failed to build dashboard page", zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong", "The dashboard could not be loaded.")
		return
	}

	data := h.data(c, "Admin")
	data["Dashboard"] = dashboard
	c.HTML(http.StatusOK, "admin.html", data)
}

// User shows a public profile.
// GET /user/:public_id
func (h *PageHandler) User(c *gin.Context) {
	ctx := c.Request.Context()
	publicID := c.Param("public_id")
	if !isUUID(publicID) {
		h.NotFound(c)
		return
	}

	profile, err := h.users.ProfileData(ctx, publicID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.NotFound(c)
			return
		}
		logger.Log.Error("Failed to load profile", zap.String("public_id", publicID), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong", "The profile could not be loaded.")
		return
	}
	stories, err := h.users.Stories(ctx, publicID, 1, service.MaxProfileStories)
	if err != nil {
		logger.Log.Error("Failed to load profile stories", zap.String("public_id", publicID), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong", "The profile could not be loaded.")
		return
	}

	data := h.data(c, profile.User.Username)
	data["Profile"] = profile
	data["Stories"] = stories
	c.HTML(http.StatusOK, "user.html", data)
}

// Story shows one story in full.
// GET /story/:public_id
func (h *PageHandler) Story(c *gin.Context) {
	ctx := c.Request.Context()
	publicID := c.Param("public_id")
	if !isUUID(publicID) {
		h.NotFound(c)
		return
	}

	view, err := h.stories.Get(ctx, publicID)
	if err != nil {
		if errors.Is(err, service.ErrStoryNotFound) {
			h.NotFound(c)
			return
		}
		logger.Log.Error("Failed to load story", zap.String("public_id", publicID), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong", "The story could not be loaded.")
		return
	}

	flowered := false
	if uid := middleware.UserID(c); uid != 0 {
		if flowered, err = h.flowers.HasFlower(ctx, view.ID, uid); err != nil {
			logger.Log.Warn("Failed to check flower", zap.Uint("story_id", view.ID), zap.Error(err))
		}
	}

	title := "(Untitled)"
	if view.Title != nil {
		title = *view.Title
	}
	data := h.data(c, title)
	data["Story"] = view.Payload()
	data["Flowered"] = flowered
	c.HTML(http.StatusOK, "story.html", data)
}

// NotFound answers unknown routes: JSON under /api, a page elsewhere.
func (h *PageHandler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	h.renderError(c, http.StatusNotFound, "Not found", "There is nothing here.")
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
