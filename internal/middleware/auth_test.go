package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermart/storefront-api/internal/middleware"
	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/utils"
)

const testSecret = "middleware-test-secret"

// stubUsers resolves every id to a fixed user, or fails when the
// user is absent.
type stubUsers struct {
	user model.User
	err  error
}

func (s stubUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	if s.err != nil {
		return model.User{}, s.err
	}
	return s.user, nil
}

func protectedApp(t *testing.T, users middleware.UserLoader, extra ...echo.MiddlewareFunc) *echo.Echo {
	t.Helper()
	e := echo.New()
	mws := append([]echo.MiddlewareFunc{middleware.RequireAuth(testSecret, users)}, extra...)
	e.GET("/protected", func(c echo.Context) error {
		u := middleware.CurrentUser(c)
		return c.JSON(http.StatusOK, echo.Map{"id": u.ID, "role": u.Role})
	}, mws...)
	return e
}

func doRequest(t *testing.T, e *echo.Echo, accessToken string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessToken})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestRequireAuthNoCookie(t *testing.T) {
	e := protectedApp(t, stubUsers{})
	rec := doRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no access token provided", errorBody(t, rec))
}

func TestRequireAuthExpiredToken(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 1, -time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{})
	rec := doRequest(t, e, tok.Value)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "access token expired", errorBody(t, rec))
}

func TestRequireAuthForgedToken(t *testing.T) {
	tok, err := utils.NewToken("some-other-secret", 1, time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{})
	rec := doRequest(t, e, tok.Value)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid access token", errorBody(t, rec))
}

func TestRequireAuthUnknownUser(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 99, time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{err: repository.ErrNotFound})
	rec := doRequest(t, e, tok.Value)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user not found", errorBody(t, rec))
}

func TestRequireAuthValidToken(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 42, time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{user: model.User{ID: 42, Role: model.RoleCustomer}})
	rec := doRequest(t, e, tok.Value)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, "customer", body["role"])
}

func TestRequireAdminRejectsCustomer(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 42, time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{user: model.User{ID: 42, Role: model.RoleCustomer}}, middleware.RequireAdmin())
	rec := doRequest(t, e, tok.Value)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin access required", errorBody(t, rec))
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	tok, err := utils.NewToken(testSecret, 1, time.Minute)
	require.NoError(t, err)

	e := protectedApp(t, stubUsers{user: model.User{ID: 1, Role: model.RoleAdmin}}, middleware.RequireAdmin())
	rec := doRequest(t, e, tok.Value)
	assert.Equal(t, http.StatusOK, rec.Code)
}
