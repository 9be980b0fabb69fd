package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/utils"
)

type AdminAuth struct {
	JWTSecret  string
	APIKeyHash string
}

func (a AdminAuth) Configured() bool {
	return a.JWTSecret != "" || a.APIKeyHash != ""
}

// AdminRequired guards operator routes. A request passes with an X-API-KEY
// matching the bcrypt hash or a Bearer token carrying role=admin. With no
// credential source configured every request passes.
func AdminRequired(auth AdminAuth, log *logger.Logger) gin.HandlerFunc {
	if !auth.Configured() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if key := c.GetHeader("X-API-KEY"); key != "" && auth.APIKeyHash != "" {
			if utils.CheckAPIKey(auth.APIKeyHash, key) {
				c.Set("operator", "api-key")
				c.Next()
				return
			}
			log.Warn("AdminRequired: rejected API key", "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API key"})
			return
		}

		tokenString := strings.TrimSpace(c.GetHeader("Authorization"))
		if tokenString == "" || auth.JWTSecret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No credentials provided"})
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims, err := utils.ValidateJWT([]byte(auth.JWTSecret), tokenString)
		if err != nil {
			log.Warn("AdminRequired: invalid token", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}
		if claims.Role != utils.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: admin role required"})
			return
		}

		c.Set("operator", claims.Subject)
		c.Next()
	}
}
