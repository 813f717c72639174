package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/internal/ratelimiter"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Context keys set by authenticate.
const (
	ctxUserKey   = "mozaichub.user"
	ctxViewerKey = "mozaichub.viewer"
)

// observe records request metrics and logs every request at debug level.
func (a *HTTPAdapter) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		a.metrics.RecordRequestStart()
		defer a.metrics.RecordRequestEnd()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		a.metrics.RecordRequest(c.Request.Method, route, c.Writer.Status(), duration)
		logger.Debug("HTTP %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), duration)
	}
}

// recovery turns handler panics into 500 responses.
func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		logger.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "internal", Message: "internal server error"}})
	})
}

// throttle rejects clients that exhausted their bucket with 429 and a
// Retry-After header. A nil limiter lets everything through.
func throttle(l *ratelimiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if l.Allow(key) {
			c.Next()
			return
		}

		wait := l.RetryAfter(key)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		logger.Warn("Rate limited %s %s from %s", c.Request.Method, c.Request.URL.Path, key)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: errorDetail{
			Code:    "rate_limited",
			Message: "too many requests, retry later",
		}})
	}
}

// authenticate requires a valid bearer token whose user still exists and
// is not banned. The user record is reloaded on every request so role
// changes and bans apply immediately.
func (a *HTTPAdapter) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortWithError(c, metadata.NewError(metadata.ErrUnauthenticated, "", "missing bearer token"))
			return
		}

		claims, err := a.tokens.Verify(raw)
		if err != nil {
			logger.Debug("Rejected bearer token: %v", err)
			abortWithError(c, metadata.NewError(metadata.ErrUnauthenticated, "", "invalid or expired token"))
			return
		}

		user, err := a.reg.Identity.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			if metadata.IsNotFound(err) {
				abortWithError(c, metadata.NewError(metadata.ErrUnauthenticated, "", "account no longer exists"))
				return
			}
			abortWithError(c, err)
			return
		}
		if user.Banned {
			abortWithError(c, metadata.NewError(metadata.ErrUnauthenticated, "", "account is banned"))
			return
		}

		c.Set(ctxUserKey, user)
		c.Set(ctxViewerKey, access.ViewerOf(user))
		c.Next()
	}
}

// requireAdmin must run after authenticate.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !viewer(c).IsAdmin() {
			abortWithError(c, metadata.NewForbiddenError("", "administrator role required"))
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func viewer(c *gin.Context) access.Viewer {
	v, _ := c.Get(ctxViewerKey)
	viewer, _ := v.(access.Viewer)
	return viewer
}

func currentUser(c *gin.Context) *metadata.User {
	u, _ := c.Get(ctxUserKey)
	user, _ := u.(*metadata.User)
	return user
}
