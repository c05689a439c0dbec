package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const actorKey = "blog.actor_id"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if id := actorID(c); id != "" {
			entry = entry.WithField("user_id", id)
		}
		entry.Info("request")
	}
}

func (h *Handler) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.metrics == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// timeoutMiddleware bounds the request context. Handlers map the resulting
// context.DeadlineExceeded to 504.
func (h *Handler) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.requestTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// bearerAuth records the caller when a valid bearer token is present. It
// never rejects; requireAuth does.
func (h *Handler) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || h.tokens == nil {
			c.Next()
			return
		}
		token, err := bearerToken(header)
		if err != nil {
			h.log.WithError(err).WithField("path", c.Request.URL.Path).Debug("authorization header invalid")
			c.Next()
			return
		}
		userID, err := h.tokens.Parse(token)
		if err != nil {
			h.log.WithError(err).WithField("path", c.Request.URL.Path).Debug("token validation failed")
			c.Next()
			return
		}
		c.Set(actorKey, userID)
		c.Next()
	}
}

// requireAuth rejects anonymous requests when ownership is enforced.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.enforceOwnership {
			c.Next()
			return
		}
		if actorID(c) == "" {
			h.respondError(c, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		c.Next()
	}
}

// rateLimit limits requests per client IP on one route.
func (h *Handler) rateLimit(route string, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil || perMinute <= 0 {
			c.Next()
			return
		}
		decision := h.limiter.Allow(c.Request.Context(), route+":ip:"+c.ClientIP(), perMinute, time.Minute)
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		if !decision.Allowed {
			if h.metrics != nil {
				h.metrics.RateLimitHit(route)
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
			h.respondError(c, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
