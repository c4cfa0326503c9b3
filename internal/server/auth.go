package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"cardtrack/internal/core"
)

// adminRealm is advertised in WWW-Authenticate on rejected admin calls.
const adminRealm = `Bearer realm="cardtrack-admin"`

var (
	errMissingAuth = errors.New("missing authorization header")
	errAuthFormat  = errors.New("invalid authorization header format, expected 'Bearer <token>'")
)

// AdminAuth guards the admin API with the master key. An empty key leaves
// the admin API open. Rejections are logged with the caller's address.
func AdminAuth(masterKey string, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	want := []byte(masterKey)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if masterKey == "" {
			return next
		}
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err == nil && subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				err = errors.New("invalid master key")
			}
			if err != nil {
				logger.Warn("admin request rejected",
					"method", c.Request().Method,
					"path", c.Path(),
					"remote_ip", c.RealIP(),
					"reason", err.Error(),
				)
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, adminRealm)
				return handleError(c, core.NewAuthenticationError(err.Error()))
			}
			return next(c)
		}
	}
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-sensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuth
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errAuthFormat
	}
	return token, nil
}
