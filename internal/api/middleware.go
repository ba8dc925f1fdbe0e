package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/internal/auth"
)

const (
	contextUserID   = "userID"
	contextUsername = "username"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, error)
}

// RequireUser rejects requests without a valid user token. The token is read
// from the Authorization header, or from the token query parameter for
// clients that cannot set headers (websocket upgrades, audio elements).
func RequireUser(tokens TokenValidator, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token",
					zap.String("path", c.Path()),
					zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}

			c.Set(contextUserID, claims.UserID)
			c.Set(contextUsername, claims.Username)
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// userID returns the authenticated user set by RequireUser
func userID(c echo.Context) string {
	id, _ := c.Get(contextUserID).(string)
	return id
}
