package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/logger"
	"github.com/kilianp07/vendpoint/core/monitoring"
	"github.com/kilianp07/vendpoint/core/ratelimit"
)

const apiKeyContext = "api_key"

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAPIKey admits callers holding a usable key and stores it in the
// context.
func requireAPIKey(auth *ledger.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		k, err := auth.Authenticate(c.Request.Context(), bearer(c))
		if err != nil {
			code := statusOf(err)
			if errors.Is(err, ledger.ErrKeyNotFound) {
				code = http.StatusUnauthorized
			}
			if code == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
				fail(c, code, err.Error())
				return
			}
			_ = c.Error(err)
			fail(c, code, "authentication unavailable")
			return
		}
		c.Set(apiKeyContext, k)
		c.Next()
	}
}

func keyFrom(c *gin.Context) ledger.APIKey {
	v, _ := c.Get(apiKeyContext)
	k, _ := v.(ledger.APIKey)
	return k
}

// rateLimit applies the key's own rules when enabled, the global ones
// otherwise. Limiter outages let the request through.
func rateLimit(l ratelimit.Limiter, global []ratelimit.Rule, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		k := keyFrom(c)
		rules := ratelimit.Effective(global, k.RateLimits, k.RateLimitsEnabled)
		err := l.Allow(c.Request.Context(), k.Key, rules)
		var limited *ratelimit.LimitedError
		switch {
		case err == nil:
		case errors.As(err, &limited):
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
			fail(c, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded: %s", limited.Rule))
			return
		default:
			log.Warnf("rate limiter unavailable for %s: %v", k.Hint, err)
		}
		c.Next()
	}
}

func recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if v := recover(); v != nil {
				err := monitoring.CapturePanic(v, map[string]string{"component": "api", "path": c.FullPath()})
				log.Errorf("panic serving %s: %v", c.Request.URL.Path, err)
				fail(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		log.Debugw("http request", fields)
	}
}

// corsPolicy answers preflight requests and sets the allow headers for the given
// origins. No origins disables the middleware.
func corsPolicy(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Correlation-ID", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
