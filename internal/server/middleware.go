package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/auth"
	"github.com/shopmarcas/smallauctions/services/auction/helpers"
	"github.com/shopmarcas/smallauctions/utils"
)

const requestIDHeader = "X-Request-ID"

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = utils.GenerateID()
	}
	c.Header(requestIDHeader, requestID)

	c.Next()

	fields := map[string]any{
		"request_id": requestID,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
	}
	if userID := helpers.UserID(c); userID != "" {
		fields["user_id"] = userID
	}
	utils.Info("HTTP Request", fields)
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(helpers.SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// Authenticate resolves the session token, if any, into the caller's user id.
// Requests without a valid token continue anonymously.
func Authenticate(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			level := utils.Warn
			if errors.Is(err, auth.ErrTokenExpired) {
				level = utils.Debug
			}
			level("Authenticate: rejected session token", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		helpers.SetUserID(c, claims.UserID)
		c.Next()
	}
}

// RequireAuth stops anonymous requests with 401
func RequireAuth(c *gin.Context) {
	if helpers.UserID(c) == "" {
		utils.AbortJSONError(c, http.StatusUnauthorized, auctionerrors.ErrUnauthorized, "authentication required")
		return
	}
	c.Next()
}
