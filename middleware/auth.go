package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the header clients put the key in
const APIKeyHeader = "X-API-Key"

// EventSource cannot set headers, so the stream endpoints also accept the
// key as a query parameter.
var apiKeyParams = []string{"apiKey", "api_key"}

// APIKey rejects requests without the configured key. An empty key
// disables the check.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		supplied := c.GetHeader(APIKeyHeader)
		for _, param := range apiKeyParams {
			if supplied != "" {
				break
			}
			supplied = c.Query(param)
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
