package ratelimit

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/medsage/medsage-server/internal/audit"
	"github.com/medsage/medsage-server/internal/httputil"
	"github.com/medsage/medsage-server/internal/telemetry"
)

const (
	headerRateLimitRequests  = "X-RateLimit-Limit-Requests"
	headerRateLimitRemaining = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset     = "X-RateLimit-Reset-Requests"
	headerRetryAfter         = "Retry-After"
)

// Options configures the per-operation quota. The limit is read through
// a func so config reloads take effect without rewiring the middleware.
type Options struct {
	Operation string
	Limit     func() (maxRequests int64, window time.Duration)
}

// Middleware enforces a per-(client address, operation) quota before the
// wrapped handler runs. Rejection happens ahead of validation and
// causes no side effects.
func Middleware(limiter *Limiter, opts Options, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			maxRequests, window := opts.Limit()
			key := fmt.Sprintf("%s:%s", opts.Operation, clientAddr(r))
			result, _ := limiter.Check(r.Context(), key, maxRequests, window)

			w.Header().Set(headerRateLimitRequests, strconv.FormatInt(maxRequests, 10))
			w.Header().Set(headerRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"operation", opts.Operation,
					"client", clientAddr(r),
					"limit", maxRequests,
				)
				audit.SecurityEvent(r, "rate_limit_exceeded", "operation", opts.Operation)
				if metrics != nil {
					metrics.RecordRateLimitHit(opts.Operation)
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d requests per %s", maxRequests, window))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr returns the client host without the port. chi's RealIP
// middleware has already resolved X-Forwarded-For upstream.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
