package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"expensehq.app/web/common/logger"
)

type contextKey string

const (
	SessionCookieName               = "expensehq_session"
	sessionKeyContextKey contextKey = "session_key"
)

// Session gives every browser a random session key in an http-only cookie.
// The key only identifies server-side state; it carries no credentials.
func Session(maxAge time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(SessionCookieName)
		if err != nil || uuid.Validate(key) != nil {
			key = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, key, int(maxAge.Seconds()), "/", "", secure, true)

		ctx := context.WithValue(c.Request.Context(), sessionKeyContextKey, key)
		ctx = logger.WithLogFields(ctx, logger.LogFields{SessionKey: logger.Ptr(key)})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSessionKey returns the key set by Session, or "" outside of it.
func GetSessionKey(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyContextKey).(string)
	return key
}
