// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file adapts a ratelimit.Limiter to Gin. Each request is counted
// against its client key; admitted requests proceed with standard
// RateLimit-* headers, rejected ones are aborted with a RATE_LIMIT_EXCEEDED
// error pushed onto the context for the terminal error handler to render.
//
// Notes:
//   - Two instances are normally installed: a general one on every route and
//     a stricter one on POST /subscribe. Their counters are independent.
//   - A failing store (e.g. Redis unreachable) fails open: the request is
//     admitted and the failure is logged.
//   - The limiter is edge-level abuse control, not an authorization mechanism.
package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-subscription-service/internal/apperr"
	"github.com/tbourn/go-subscription-service/internal/observability"
	"github.com/tbourn/go-subscription-service/internal/ratelimit"
)

// Response headers describing the caller's current window.
const (
	HeaderRateLimitLimit     = "RateLimit-Limit"
	HeaderRateLimitRemaining = "RateLimit-Remaining"
	HeaderRateLimitReset     = "RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// KeyFunc selects the identity used to key a rate-limit window.
type KeyFunc func(*gin.Context) string

// KeyByIP keys windows by the client address as resolved by Gin (which
// honors the engine's trusted proxy settings).
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Key identifies the client. Nil means KeyByIP.
	Key KeyFunc
	// SkipPaths are exact request paths never counted, such as health checks.
	SkipPaths []string
}

// RateLimit returns a Gin middleware enforcing l per key.
//
// name labels the limiter in logs, metrics and store keys, so two limiters
// never share counters.
func RateLimit(name string, l *ratelimit.Limiter, opts RateLimitOptions) gin.HandlerFunc {
	keyFn := opts.Key
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	// Rejection and store-failure logs are sampled so a flood does not
	// become a log flood.
	rejectLog := &rate.Sometimes{First: 1, Interval: time.Minute}
	storeLog := &rate.Sometimes{First: 1, Interval: 10 * time.Second}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		key := name + ":" + keyFn(c)
		d, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			storeLog.Do(func() {
				LoggerFrom(c).Warn().Err(err).Str("limiter", name).Msg("rate limit store unavailable; admitting request")
			})
			c.Next()
			return
		}

		now := l.Clock().Now()
		h := c.Writer.Header()
		h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
		h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		h.Set(HeaderRateLimitReset, seconds(d.RetryAfter(now)))

		if d.Allowed {
			c.Next()
			return
		}

		h.Set(HeaderRetryAfter, seconds(d.RetryAfter(now)))
		observability.RateLimitRejections.WithLabelValues(name).Inc()
		rejectLog.Do(func() {
			LoggerFrom(c).Warn().Str("limiter", name).Time("reset_at", d.ResetAt).Msg("rate limit exceeded")
		})
		_ = c.Error(apperr.RateLimited(""))
		c.Abort()
	}
}

// seconds renders d as whole seconds, rounding up.
func seconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
