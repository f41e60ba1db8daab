package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests over the limit with 429. The identifier
// is the bearer token when present, otherwise the client IP, so
// authenticated callers are throttled per credential rather than per
// NAT gateway. onReject is optional and runs once per rejection.
func Middleware(l *Limiter, onReject func(identifier string)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := identify(c)
			res := l.Allow(c.Request().Context(), id)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				if onReject != nil {
					onReject(id)
				}
				h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"success":   false,
					"error":     "rate limit exceeded",
					"retryable": true,
				})
			}
			return next(c)
		}
	}
}

func identify(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		if tok := strings.TrimPrefix(auth, "Bearer "); tok != auth && tok != "" {
			return "token:" + tok
		}
	}
	if fwd := c.Request().Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return "ip:" + first
		}
	}
	return "ip:" + c.RealIP()
}
