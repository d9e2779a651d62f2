package clientmeta

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
	"github.com/tech-arch1tect/tokenguard/testutils"
)

func TestFromRequest(t *testing.T) {
	e := echo.New()
	client := testutils.FakeClient()

	t.Run("all headers present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.RemoteAddr = client.IP + ":52311"
		req.Header.Set("User-Agent", client.UserAgent)
		req.Header.Set(SessionIDHeader, "sess-1")
		c := e.NewContext(req, httptest.NewRecorder())

		md := FromRequest(c)

		assert.Equal(t, refreshtoken.Some(client.IP), md.IPAddress)
		assert.Equal(t, refreshtoken.Some(client.UserAgent), md.UserAgent)
		assert.Equal(t, "sess-1", md.SessionID)
	})

	t.Run("missing user agent is absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		md := FromRequest(c)

		assert.True(t, md.IPAddress.IsSet())
		assert.False(t, md.UserAgent.IsSet())
		assert.Empty(t, md.SessionID)
	})
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	var captured refreshtoken.TokenMetadata
	e.POST("/auth/refresh", func(c echo.Context) error {
		captured = Get(c)
		return c.NoContent(http.StatusNoContent)
	}, Middleware())

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set(echo.HeaderXForwardedFor, "203.0.113.7")
	req.Header.Set("User-Agent", "UA1")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	ip, ok := captured.IPAddress.Get()
	require.True(t, ok)
	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, refreshtoken.Some("UA1"), captured.UserAgent)
}
