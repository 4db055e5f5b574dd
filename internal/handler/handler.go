package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Baaaki/storyline/internal/middleware"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusTable maps domain errors to the status they are answered with. The
// error text is the code sent to the client.
type statusTable map[error]int

// respondError answers err through table. Anything unmapped is logged and
// answered with a 500 carrying fallback as the code.
func respondError(c *gin.Context, table statusTable, err error, fallback string) {
	for known, status := range table {
		if errors.Is(err, known) {
			c.JSON(status, gin.H{"error": known.Error()})
			return
		}
	}

	logger.Log.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func badRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

// allowFuture lets admins look at prompts ahead of today.
func allowFuture(c *gin.Context) bool {
	return middleware.CurrentSession(c).IsAdmin()
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// validStoryID accepts a positive numeric id or a UUID.
func validStoryID(id string) bool {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n > 0
	}
	return isUUID(id)
}

// checked reads a checkbox style form value: anything but "" and "0" is on.
func checked(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0"
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(target string) string {
	if target == "" ||
		!strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") ||
		strings.ContainsAny(target, "\r\n\\") {
		return "/dashboard"
	}
	return target
}
