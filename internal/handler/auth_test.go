package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermart/storefront-api/internal/config"
	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/utils"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

type fakeUsers struct {
	byEmail   map[string]model.User
	createErr error
	nextID    uint64
}

func (f *fakeUsers) Create(ctx context.Context, name, email, password string, cost int) (uint64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if f.nextID == 0 {
		f.nextID = 1
	}
	return f.nextID, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

// fakeSessions keeps the single refresh token per user in memory.
type fakeSessions struct {
	tokens  map[uint64]string
	deleted []uint64
}

func (f *fakeSessions) Save(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	if f.tokens == nil {
		f.tokens = make(map[uint64]string)
	}
	f.tokens[userID] = token
	return nil
}

func (f *fakeSessions) Validate(ctx context.Context, userID uint64, token string) error {
	if f.tokens[userID] != token {
		return repository.ErrTokenMismatch
	}
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, userID uint64) error {
	f.deleted = append(f.deleted, userID)
	delete(f.tokens, userID)
	return nil
}

func newAuthHandler(users *fakeUsers, sessions *fakeSessions) *AuthHandler {
	return NewAuthHandler(config.Config{
		Env:            "dev",
		AccessSecret:   testAccessSecret,
		RefreshSecret:  testRefreshSecret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
	}, users, sessions, zerolog.Nop())
}

func authPost(t *testing.T, body any, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(http.MethodPost, "/", reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	res := rec.Result()
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestSignupSetsSessionCookies(t *testing.T) {
	users := &fakeUsers{nextID: 9}
	sessions := &fakeSessions{}
	h := newAuthHandler(users, sessions)

	c, rec := authPost(t, signupReq{Name: "Ada", Email: "Ada@Example.com", Password: "pw123456"})
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body model.PublicUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(9), body.ID)
	assert.Equal(t, "ada@example.com", body.Email)
	assert.Equal(t, model.RoleCustomer, body.Role)

	access := cookieByName(t, rec, "accessToken")
	assert.True(t, access.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.False(t, access.Secure, "dev env keeps cookies plain-http")

	refresh := cookieByName(t, rec, "refreshToken")
	assert.Equal(t, sessions.tokens[9], refresh.Value, "stored refresh token must match the cookie")

	userID, err := utils.VerifyToken(testAccessSecret, access.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), userID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := &fakeUsers{createErr: repository.ErrEmailExists}
	h := newAuthHandler(users, &fakeSessions{})

	c, rec := authPost(t, signupReq{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.NoError(t, h.Signup(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupMissingFields(t *testing.T) {
	h := newAuthHandler(&fakeUsers{}, &fakeSessions{})
	c, rec := authPost(t, signupReq{Name: "Ada"})
	require.NoError(t, h.Signup(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := utils.HashPassword("right-password", 4)
	require.NoError(t, err)
	users := &fakeUsers{byEmail: map[string]model.User{
		"ada@example.com": {ID: 9, Email: "ada@example.com", PasswordHash: hash},
	}}
	h := newAuthHandler(users, &fakeSessions{})

	c, rec := authPost(t, loginReq{Email: "ada@example.com", Password: "wrong"})
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	h := newAuthHandler(&fakeUsers{}, &fakeSessions{})
	c, rec := authPost(t, loginReq{Email: "ghost@example.com", Password: "whatever"})
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid email or password", body["error"])
}

func TestLoginSupersedesPreviousSession(t *testing.T) {
	hash, err := utils.HashPassword("pw123456", 4)
	require.NoError(t, err)
	users := &fakeUsers{byEmail: map[string]model.User{
		"ada@example.com": {ID: 9, Email: "ada@example.com", PasswordHash: hash},
	}}
	sessions := &fakeSessions{tokens: map[uint64]string{9: "old-refresh-token"}}
	h := newAuthHandler(users, sessions)

	c, rec := authPost(t, loginReq{Email: "ada@example.com", Password: "pw123456"})
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotEqual(t, "old-refresh-token", sessions.tokens[9])
	assert.NoError(t, sessions.Validate(context.Background(), 9, sessions.tokens[9]))
}

func TestRefreshIssuesNewAccessTokenOnly(t *testing.T) {
	sessions := &fakeSessions{}
	h := newAuthHandler(&fakeUsers{}, sessions)

	refresh, err := utils.NewToken(testRefreshSecret, 9, time.Hour)
	require.NoError(t, err)
	require.NoError(t, sessions.Save(context.Background(), 9, refresh.Value, time.Hour))

	c, rec := authPost(t, nil, &http.Cookie{Name: "refreshToken", Value: refresh.Value})
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	access := cookieByName(t, rec, "accessToken")
	userID, err := utils.VerifyToken(testAccessSecret, access.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), userID)

	// the refresh token on record is untouched
	assert.Equal(t, refresh.Value, sessions.tokens[9])
	for _, ck := range rec.Result().Cookies() {
		assert.NotEqual(t, "refreshToken", ck.Name, "refresh must not rotate the refresh token")
	}
}

func TestRefreshRejectsSupersededToken(t *testing.T) {
	sessions := &fakeSessions{tokens: map[uint64]string{9: "the-newer-token"}}
	h := newAuthHandler(&fakeUsers{}, sessions)

	stale, err := utils.NewToken(testRefreshSecret, 9, time.Hour)
	require.NoError(t, err)

	c, rec := authPost(t, nil, &http.Cookie{Name: "refreshToken", Value: stale.Value})
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshNoCookie(t *testing.T) {
	h := newAuthHandler(&fakeUsers{}, &fakeSessions{})
	c, rec := authPost(t, nil)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAlwaysSucceedsAndClearsCookies(t *testing.T) {
	sessions := &fakeSessions{tokens: map[uint64]string{9: "whatever"}}
	h := newAuthHandler(&fakeUsers{}, sessions)

	refresh, err := utils.NewToken(testRefreshSecret, 9, time.Hour)
	require.NoError(t, err)

	c, rec := authPost(t, nil, &http.Cookie{Name: "refreshToken", Value: refresh.Value})
	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []uint64{9}, sessions.deleted)
	for _, name := range []string{"accessToken", "refreshToken"} {
		ck := cookieByName(t, rec, name)
		assert.Empty(t, ck.Value)
		assert.Negative(t, ck.MaxAge)
	}
}

func TestLogoutWithoutCookieStillSucceeds(t *testing.T) {
	sessions := &fakeSessions{}
	h := newAuthHandler(&fakeUsers{}, sessions)

	c, rec := authPost(t, nil)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sessions.deleted)
}
