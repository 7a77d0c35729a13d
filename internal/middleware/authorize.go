package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/models"
)

func RequireRoles(roles ...models.AccountRole) gin.HandlerFunc {
	roleSet := make(map[models.AccountRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			AbortWithErrors(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		if _, ok := roleSet[account.Role]; !ok {
			AbortWithErrors(c, http.StatusForbidden, "forbidden")
			return
		}

		c.Next()
	}
}
