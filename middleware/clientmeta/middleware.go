// Package clientmeta captures the client details that refresh tokens are
// bound to. Behind a proxy, configure echo's IPExtractor so RealIP cannot be
// spoofed through forwarding headers.
package clientmeta

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokenguard/services/refreshtoken"
)

const (
	MetadataKey     = "_client_metadata"
	SessionIDHeader = "X-Session-ID"
)

func FromRequest(c echo.Context) refreshtoken.TokenMetadata {
	md := refreshtoken.NewMetadata(c.RealIP(), c.Request().UserAgent())
	md.SessionID = c.Request().Header.Get(SessionIDHeader)
	return md
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(MetadataKey, FromRequest(c))
			return next(c)
		}
	}
}

// Get returns the metadata stored by Middleware, falling back to reading the
// request directly.
func Get(c echo.Context) refreshtoken.TokenMetadata {
	if md, ok := c.Get(MetadataKey).(refreshtoken.TokenMetadata); ok {
		return md
	}
	return FromRequest(c)
}
