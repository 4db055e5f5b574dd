package handler

import (
	"net/http"
	"time"

	"github.com/Baaaki/storyline/internal/quotebook"
	"github.com/Baaaki/storyline/internal/service"
	"github.com/gin-gonic/gin"
)

type QuoteHandler struct {
	quotes  *service.QuoteService
	catalog *quotebook.Catalog
}

func NewQuoteHandler(quotes *service.QuoteService, catalog *quotebook.Catalog) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, catalog: catalog}
}

var (
	ensureTodayStatus = statusTable{
		service.ErrInvalidDateFormat: http.StatusBadRequest,
		service.ErrNoQuoteAvailable:  http.StatusBadRequest,
		service.ErrQuoteInsertFailed: http.StatusBadRequest,
	}
	ensureByDateStatus = statusTable{
		service.ErrInvalidDateFormat: http.StatusBadRequest,
		service.ErrNoQuoteAvailable:  http.StatusBadRequest,
		service.ErrQuoteInsertFailed: http.StatusInternalServerError,
	}
	catalogStatus = statusTable{
		quotebook.ErrFileMissing:  http.StatusInternalServerError,
		quotebook.ErrEmpty:        http.StatusInternalServerError,
		quotebook.ErrInvalidEntry: http.StatusInternalServerError,
	}
)

// Today returns today's prompt without creating it.
// GET /api/quote/today
func (h *QuoteHandler) Today(c *gin.Context) {
	quote, err := h.quotes.GetToday(c.Request.Context())
	if err != nil {
		respondError(c, nil, err, "internal_error")
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_quote_today"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// EnsureToday fetches and stores today's prompt when it is missing.
// POST /api/quote/today
func (h *QuoteHandler) EnsureToday(c *gin.Context) {
	quote, err := h.quotes.GetOrEnsureForDate(c.Request.Context(), "today", false)
	if err != nil {
		respondError(c, ensureTodayStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// ByDate returns the stored prompt of a date.
// GET /api/quote?date=
func (h *QuoteHandler) ByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		badRequest(c, "missing_date")
		return
	}

	quote, err := h.quotes.GetForDate(c.Request.Context(), date, allowFuture(c))
	if err != nil {
		respondError(c, statusTable{service.ErrInvalidDateFormat: http.StatusBadRequest}, err, "internal_error")
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_quote_for_date"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// EnsureByDate fetches and stores the prompt of a date when it is missing.
// POST /api/quote?date=
func (h *QuoteHandler) EnsureByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		badRequest(c, "missing_date")
		return
	}

	quote, err := h.quotes.GetOrEnsureForDate(c.Request.Context(), date, allowFuture(c))
	if err != nil {
		respondError(c, ensureByDateStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// Random picks the catalog quote for a date. It is the upstream the quote
// service fetches from.
// GET /api/quotes/random?date=
func (h *QuoteHandler) Random(c *gin.Context) {
	date, err := time.Parse(service.DateLayout, c.Query("date"))
	if err != nil {
		date = h.quotes.Now()
	}

	pick, err := h.catalog.PickForDate(date)
	if err != nil {
		respondError(c, catalogStatus, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, pick)
}
