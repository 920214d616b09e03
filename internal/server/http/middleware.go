package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
)

const (
	requestIDHeader = "X-Request-ID"
	claimsKey       = "claims"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(tokenString string) (*auth.Claims, error)
}

// RateLimiter counts hits per key. It may return true together with an
// error when the backing store is down.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// requestID tags every request with an id taken from X-Request-ID or
// generated, and puts it into the request context for the loggers.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

func recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		abortWithError(c, common.ErrInternal)
	})
}

// bearer requires "Authorization: Bearer <token>" and stores the parsed
// claims in the gin context.
func bearer(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWith(c, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*auth.Claims)
	return claims
}

// rateLimit limits the named route per client IP. Limiter failures let the
// request through.
func rateLimit(limiter RateLimiter, name string, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := name + ":" + c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
		}
		if !allowed {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "key", key)
			abortWith(c, http.StatusTooManyRequests, codeTooManyRequests, "too many requests, try again later", nil)
			return
		}

		c.Next()
	}
}
