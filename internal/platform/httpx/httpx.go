package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusCoder is implemented by client error types that carry the HTTP
// status of a failed response.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryableStatus reports whether a status code is worth retrying:
// request timeout, rate limiting, or any server-side failure.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return code >= 500 && code < 600
	}
}

// IsRetryableError classifies transport and status errors for the outbound
// client retry loops. Context cancellation counts as retryable so a
// deadline set per-attempt does not abort the whole loop.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return RetryableStatus(sc.HTTPStatus())
	}
	return false
}

// RetryAfterDuration resolves the next sleep from the response's Retry-After
// header (seconds or HTTP-date form), falling back to the supplied backoff
// and capping at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			} else if at, err := http.ParseTime(ra); err == nil {
				if until := time.Until(at); until > 0 {
					sleepFor = until
				}
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// JitterSleep spreads a base delay by +-20% so concurrent retry loops do not
// thunder in step.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	factor := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(base) * factor)
}
