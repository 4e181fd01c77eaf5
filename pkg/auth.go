package pkg

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUserID reads the authenticated user set by the auth middleware. When it is missing the
// request is answered with 401 and false is returned.
func GetUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(string); ok && id != "" {
			return id, true
		}
	}
	c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
	c.Abort()
	return "", false
}

func GetUserEmail(c *gin.Context) string {
	return c.GetString("userEmail")
}
