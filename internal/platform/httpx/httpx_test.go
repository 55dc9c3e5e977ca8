package httpx

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return "status error" }
func (e *statusErr) HTTPStatus() int { return e.code }

func TestRetryableStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{600, false},
	}
	for _, tc := range cases {
		if got := RetryableStatus(tc.code); got != tc.want {
			t.Fatalf("RetryableStatus(%d): want=%v got=%v", tc.code, tc.want, got)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if IsRetryableError(nil) {
		t.Fatal("nil error is not retryable")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded should be retryable")
	}
	if !IsRetryableError(&statusErr{code: 503}) {
		t.Fatal("503 should be retryable")
	}
	if IsRetryableError(&statusErr{code: 400}) {
		t.Fatal("400 should not be retryable")
	}
	if IsRetryableError(errors.New("schema mismatch")) {
		t.Fatal("plain errors should not be retryable")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 3*time.Second {
		t.Fatalf("seconds form: want=3s got=%s", got)
	}

	resp = &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cap: want=10s got=%s", got)
	}

	if got := RetryAfterDuration(nil, 2*time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("fallback: want=2s got=%s", got)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 50; i++ {
		got := JitterSleep(base)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of +-20%% band: %s", got)
		}
	}
	if JitterSleep(0) != 0 {
		t.Fatal("non-positive base should sleep zero")
	}
}
