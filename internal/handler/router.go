package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/Baaaki/storyline/internal/broker"
	"github.com/Baaaki/storyline/internal/config"
	"github.com/Baaaki/storyline/internal/metrics"
	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/internal/quotebook"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/Baaaki/storyline/internal/session"
	"github.com/Baaaki/storyline/internal/throttle"
	"github.com/Baaaki/storyline/internal/web"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps is everything the router needs. AvatarDir is empty when avatars are
// served from object storage.
type Deps struct {
	Config   *config.Config
	Redis    *redis.Client
	Sessions *session.Manager
	Throttle *throttle.Throttle
	Metrics  *metrics.Metrics
	Events   broker.EventBroker
	Catalog  *quotebook.Catalog

	Quotes  *service.QuoteService
	Stories *service.StoryService
	Flowers *service.FlowerService
	Users   *service.UserService
	Resets  *service.PasswordResetService
	Admin   *service.AdminService

	AvatarDir string
}

// Router is the assembled engine plus the feed hub, which the caller runs.
type Router struct {
	Engine *gin.Engine
	Feed   *FeedHandler
}

// NewRouter wires middleware and routes.
//
// Middleware order:
//  1. RequestID, access log, panic recovery
//  2. Security headers (HSTS in production)
//  3. Metrics
//  4. gzip (not on the WebSocket feed)
//  5. Session and device cookie
//
// /api additionally gets CORS and the per-IP rate limiter. State changing
// routes verify the CSRF token.
func NewRouter(d Deps) *Router {
	cfg := d.Config

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(web.Templates())

	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	r.Use(middleware.SecurityHeaders(middleware.SecurityPolicy{
		ImageOrigins:   []string{cfg.S3PublicURL},
		ConnectOrigins: append([]string{cfg.AppURL}, cfg.CORSAllowedOrigins...),
		HSTS:           cfg.IsProduction(),
	}))
	r.Use(d.Metrics.Middleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/feed"})))

	// Outside the session so probes and scrapers do not mint sessions
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	r.StaticFS("/static", web.Static())
	if d.AvatarDir != "" {
		r.Static(cfg.AvatarURLPrefix, d.AvatarDir)
	}

	auth := NewAuthHandler(d.Users, d.Sessions, d.Throttle, d.Metrics)
	stories := NewStoryHandler(d.Stories, cfg.IPSalt, d.Metrics)
	flowers := NewFlowerHandler(d.Flowers, d.Metrics)
	quotes := NewQuoteHandler(d.Quotes, d.Catalog)
	profiles := NewProfileHandler(d.Users)
	resets := NewPasswordResetHandler(d.Resets)
	admin := NewAdminHandler(d.Admin)
	feed := NewFeedHandler(d.Events, d.Metrics, cfg.CORSAllowedOrigins)
	pages := NewPageHandler(d.Quotes, d.Stories, d.Flowers, d.Users, d.Admin, d.Resets, cfg.StoryMaxWords)

	// The quote service fetches from here, so it stays outside sessions and
	// the rate limiter.
	r.GET("/api/quotes/random", quotes.Random)

	app := r.Group("")
	app.Use(middleware.Sessions(d.Sessions), middleware.DeviceToken(cfg.IsProduction()))
	csrf := middleware.VerifyCSRF()

	// Pages
	app.GET("/", pages.Index)
	app.GET("/dashboard", middleware.RequireUser(), pages.Dashboard)
	app.GET("/login", pages.Login)
	app.POST("/login", csrf, auth.Login)
	app.POST("/logout", csrf, auth.Logout)
	app.GET("/register", pages.Register)
	app.POST("/register", csrf, auth.Register)
	app.GET("/password/forgot", pages.ForgotPassword)
	app.POST("/password/forgot", csrf, resets.Forgot)
	app.GET("/password/reset", pages.ResetPassword)
	app.POST("/password/reset", csrf, resets.Reset)
	app.GET("/stories", pages.Stories)
	app.GET("/admin", middleware.RequireAdmin(), pages.Admin)
	app.GET("/user/:public_id", pages.User)
	app.GET("/story/:public_id", pages.Story)

	// JSON API
	api := app.Group("/api")
	// Same-origin browser calls pass untouched; other origins must be listed.
	api.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return slices.Contains(cfg.CORSAllowedOrigins, origin)
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-CSRF-Token", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	limiter := middleware.NewRateLimiter(d.Redis, middleware.RateLimiterConfig{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
	})
	api.Use(limiter.Middleware())
	{
		api.GET("/stories", stories.List)
		api.GET("/story", stories.Get)
		api.POST("/story", csrf, stories.Create)

		api.POST("/story/flower", csrf, middleware.RequireUser(), flowers.Toggle)
		api.GET("/story/flowers", flowers.Count)

		api.GET("/quote/today", quotes.Today)
		api.POST("/quote/today", csrf, quotes.EnsureToday)
		api.GET("/quote", quotes.ByDate)
		api.POST("/quote", csrf, quotes.EnsureByDate)

		api.GET("/user/:public_id/profile", profiles.Profile)
		api.GET("/user/:public_id/stories", profiles.Stories)

		me := api.Group("/me", csrf, middleware.RequireUser())
		me.POST("/favorite-quote", profiles.SetFavoriteQuote)
		me.POST("/username", profiles.ChangeUsername)
		me.POST("/password", profiles.ChangePassword)
		me.POST("/avatar", profiles.ChangeAvatar)

		api.GET("/admin/dashboard", middleware.RequireAdmin(), admin.Dashboard)

		api.GET("/feed", feed.Serve)
	}

	r.NoRoute(middleware.Sessions(d.Sessions), pages.NotFound)
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
	})

	return &Router{Engine: r, Feed: feed}
}
