package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/models"
	"stockroom-server/internal/services"
	"stockroom-server/internal/utils"
)

const currentUserKey = "current_user"

// JWTAuth verifies the bearer token and resolves it to the stored user, so
// deactivated or deleted accounts are rejected on every request rather than
// trusted from stale claims.
func JWTAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			utils.RespondError(c, utils.NewAppError(http.StatusUnauthorized, utils.CodeUnauthorized, "missing token", nil))
			c.Abort()
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		user, err := auth.CurrentUser(c.Request.Context(), tokenStr)
		if err != nil {
			utils.RespondError(c, err)
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Set("username", user.Username)
		c.Next()
	}
}

// UserFromContext returns the user resolved by JWTAuth, or nil outside the
// protected group.
func UserFromContext(c *gin.Context) *models.User {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}
