package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/utils"
)

// userKey is the context key the resolved user is stored under.
const userKey = "user"

// UserLoader is the slice of the user repository the guard needs.
// An interface so tests can resolve identities without a database.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RequireAuth returns an Echo middleware that resolves the caller's
// identity from the accessToken cookie before delegating to business
// logic. The error detail distinguishes a missing cookie from an
// expired token from a forged one, so the client knows whether to
// refresh or to re-login. On success the loaded user — password hash
// excluded — is attached to the request context under "user".
func RequireAuth(accessSecret string, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie("accessToken")
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no access token provided"})
			}

			userID, err := utils.VerifyToken(accessSecret, cookie.Value)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token expired"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			u, err := users.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
			}
			u.PasswordHash = ""

			c.Set(userKey, u)
			return next(c)
		}
	}
}

// CurrentUser returns the user attached by RequireAuth. The zero
// User is returned on routes that skipped the guard.
func CurrentUser(c echo.Context) model.User {
	if u, ok := c.Get(userKey).(model.User); ok {
		return u
	}
	return model.User{}
}
