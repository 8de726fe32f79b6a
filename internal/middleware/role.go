package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin permits a request only when the identity resolved by
// RequireAuth carries the admin role. Everything else — including a
// request that skipped the auth guard — gets a 403.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CurrentUser(c).IsAdmin() {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
			}
			return next(c)
		}
	}
}
