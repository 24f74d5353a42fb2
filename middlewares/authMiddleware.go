package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/winery_ingest/utils"
)

// AuthMiddleware admits callers presenting a valid token, either in the "token" header or
// as "Authorization: Bearer <token>". The username and role go into the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Request.Header.Get("token"))
		if token == "" {
			auth := c.Request.Header.Get("Authorization")
			if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok {
				token = strings.TrimSpace(bearer)
			}
		}
		if token == "" {
			abortUnauthenticated(c)
			return
		}

		claims, err := utils.JwtValidate(token)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), claims.Username)
		ctx = utils.SetRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"kind": utils.KindUnauthenticated, "message": "unauthorized"},
	})
}
