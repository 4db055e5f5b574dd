package middleware

import (
	"net/http"
	"regexp"

	"github.com/Baaaki/storyline/internal/utils"
	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	DeviceCookieName = "device_token"
	deviceTokenKey   = "device_token"
	deviceCookieAge  = 365 * 24 * 60 * 60
)

var deviceTokenRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// DeviceToken makes sure every browser carries a device_token cookie. Only a
// token the browser sent back counts as an identity; a client that drops
// cookies keeps getting fresh ones and falls back to the ip hash.
func DeviceToken(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(DeviceCookieName)
		if err == nil && deviceTokenRegex.MatchString(token) {
			c.Set(deviceTokenKey, token)
			c.Next()
			return
		}

		token, err = utils.RandomHex(16)
		if err != nil {
			logger.Log.Error("Failed to generate device token", zap.Error(err))
			c.Next()
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     DeviceCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   deviceCookieAge,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		c.Next()
	}
}

// DeviceTokenFrom returns the device token the browser presented, empty when
// it had none.
func DeviceTokenFrom(c *gin.Context) string {
	return c.GetString(deviceTokenKey)
}
