package middleware

import (
	"net/http"
	"strings"

	"clipflow"
	"clipflow/pkg"

	"github.com/gin-gonic/gin"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	devUserID = "dev-user"
)

func AuthMiddleware(cfg clipflow.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Mode == "dev" && c.GetHeader("Authorization") == "" && c.Query("token") == "" {
			c.Set("userID", devUserID)
			c.Set("userEmail", "")
			c.Set("userRole", RoleAdmin)
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			return
		}
		claims, err := pkg.ValidateToken(token, cfg.JWTConfig.Secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)

		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set headers on an
// EventSource, so the token may also come as ?token=.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		c.Abort()
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
		c.Abort()
		return "", false
	}
	return parts[1], true
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("userRole")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User role not found"})
			c.Abort()
			return
		}

		role, _ := userRole.(string)
		for _, allowedRole := range roles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"message": "Insufficient permissions"})
		c.Abort()
	}
}
