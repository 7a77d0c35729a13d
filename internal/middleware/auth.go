package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/config"
	"pixelhost/internal/models"
	"pixelhost/internal/repository"
	"pixelhost/internal/security"
)

const currentAccountKey = "current_account"

type AccountGetter interface {
	GetByID(ctx context.Context, id string) (models.Account, error)
}

// Auth resolves the bearer token to an account. Banned accounts are turned
// away here, so handlers behind it only see accounts in good standing.
func Auth(cfg *config.AppConfig, accounts AccountGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			AbortWithErrors(c, http.StatusUnauthorized, "missing token")
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
		if err != nil {
			AbortWithErrors(c, http.StatusUnauthorized, "invalid token")
			return
		}

		account, err := accounts.GetByID(c.Request.Context(), claims.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				AbortWithErrors(c, http.StatusUnauthorized, "account not found")
				return
			}
			AbortWithErrors(c, http.StatusInternalServerError, "internal server error")
			return
		}

		if account.Banned {
			AbortWithErrors(c, http.StatusUnauthorized, "your account is banned:\n"+account.BanMessage())
			return
		}

		c.Set(currentAccountKey, account)

		c.Next()
	}
}

// CurrentAccount returns the account Auth stored on the context.
func CurrentAccount(c *gin.Context) (models.Account, bool) {
	val, exists := c.Get(currentAccountKey)
	if !exists {
		return models.Account{}, false
	}
	account, ok := val.(models.Account)
	return account, ok
}
