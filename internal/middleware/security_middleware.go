package middleware

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityPolicy lists what pages may load besides their own origin.
type SecurityPolicy struct {
	// ImageOrigins serve avatars, e.g. the S3 public URL.
	ImageOrigins []string
	// ConnectOrigins may be reached by fetch and the live feed.
	ConnectOrigins []string
	// HSTS pins the site to HTTPS. Production only.
	HSTS bool
}

// Pages that carry a CSRF token or account data must not be cached.
var noStorePrefixes = []string{"/login", "/register", "/password/", "/dashboard", "/admin", "/api/me/", "/api/admin/"}

// SecurityHeaders sets the browser hardening headers on every response.
func SecurityHeaders(policy SecurityPolicy) gin.HandlerFunc {
	csp := policy.contentSecurityPolicy()

	return func(c *gin.Context) {
		// Uploaded avatars are served from here too
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", csp)
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

		if policy.HSTS {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		path := c.Request.URL.Path
		for _, prefix := range noStorePrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Header("Cache-Control", "no-store")
				break
			}
		}

		c.Next()
	}
}

func (p SecurityPolicy) contentSecurityPolicy() string {
	img := append([]string{"'self'", "data:"}, originsOf(p.ImageOrigins, false)...)
	connect := append([]string{"'self'"}, originsOf(p.ConnectOrigins, true)...)

	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"font-src 'self'",
		"connect-src " + strings.Join(connect, " "),
		"form-action 'self'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
	}
	return strings.Join(directives, "; ")
}

// originsOf reduces URLs to scheme://host, dropping anything unparsable.
// With sockets set, http(s) origins also admit the matching ws(s) scheme.
func originsOf(raw []string, sockets bool) []string {
	var out []string
	for _, r := range raw {
		u, err := url.Parse(strings.TrimSpace(r))
		if err != nil || u.Host == "" {
			continue
		}
		switch u.Scheme {
		case "https", "http":
			out = append(out, u.Scheme+"://"+u.Host)
			if sockets {
				out = append(out, strings.Replace(u.Scheme, "http", "ws", 1)+"://"+u.Host)
			}
		}
	}
	return out
}
