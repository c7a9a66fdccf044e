package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtAuthMiddlewareAcceptsGeneratedToken(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	token, err := GenerateAccessToken("user-123", "Sam")
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := JwtAuthMiddleware(func(c echo.Context) error {
		called = true
		assert.Equal(t, "user-123", c.Get("user_id"))
		assert.Equal(t, "Sam", c.Get("user_name"))
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.True(t, called)
}

func TestJwtAuthMiddlewareRejectsMissingCredentials(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JwtAuthMiddleware(func(c echo.Context) error {
		t.Fatal("handler must not run without credentials")
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJwtAuthMiddlewareRejectsTamperedToken(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	token, err := GenerateAccessToken("user-123", "Sam")
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JwtAuthMiddleware(func(c echo.Context) error {
		t.Fatal("handler must not run with a tampered token")
		return nil
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatSessionIDStablePerCookie(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("APP_ENV", "test")
	require.NoError(t, InitAuth())

	e := echo.New()

	// First contact issues a fresh ID and sets the cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	first, err := ChatSessionID(c)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// A second request carrying the cookie resolves to the same ID.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req2.AddCookie(ck)
	}
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req2, rec2)

	second, err := ChatSessionID(c2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChatSessionIDDiffersAcrossBrowsers(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	require.NoError(t, InitAuth())

	e := echo.New()

	c1 := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c2 := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	id1, err := ChatSessionID(c1)
	require.NoError(t, err)
	id2, err := ChatSessionID(c2)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}
