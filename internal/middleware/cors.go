package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsAllowMethods = strings.Join([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions}, ", ")
	corsAllowHeaders = strings.Join([]string{"Origin", "Content-Type", "Accept", RequestIDHeader}, ", ")
)

// CORS echoes the Origin header back when it is in allowedOrigins. A "*"
// entry allows any origin. Preflight requests are answered with 204.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAny = true
			continue
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := allowed[origin]
			switch {
			case ok:
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			case allowAny:
				c.Header("Access-Control-Allow-Origin", "*")
			}
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
