package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"cobranca/controllers"

	"github.com/gin-gonic/gin"
)

// TriggerAuthorizer requires "Authorization: Bearer <token>" when token is set.
// An empty token leaves the route open (trusted network / local cron).
func TriggerAuthorizer(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			return
		}

		c.Next()
	}
}
