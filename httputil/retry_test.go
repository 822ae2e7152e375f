package httputil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	oldRate, oldStep, oldSrv := RateLimitBaseDelay, RateLimitStepDelay, ServerErrBaseDelay
	RateLimitBaseDelay = time.Millisecond
	RateLimitStepDelay = time.Millisecond
	ServerErrBaseDelay = time.Millisecond
	t.Cleanup(func() {
		RateLimitBaseDelay = oldRate
		RateLimitStepDelay = oldStep
		ServerErrBaseDelay = oldSrv
	})
}

// roundTripFunc erlaubt Transportfehler ohne echten Server.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// timeoutError verhält sich wie ein abgelaufener Request auf Netzebene.
type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline überschritten" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestDoWithRetryRecoversFrom429(t *testing.T) {
	fastBackoff(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, 5)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryRecoversFrom5xx(t *testing.T) {
	fastBackoff(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, 3)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, calls)
}

func TestDoWithRetryExhaustedReturnsLastResponse(t *testing.T) {
	fastBackoff(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, 2)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDoWithRetryDoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, 5)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDoWithRetryRecoversFromTimeout(t *testing.T) {
	fastBackoff(t)

	calls := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, timeoutError{}
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("ok")),
			Header:     http.Header{},
		}, nil
	})}

	req, err := http.NewRequest(http.MethodGet, "http://papers.invalid/", nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), client, req, 5)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryTimeoutExhaustedReturnsError(t *testing.T) {
	fastBackoff(t)

	calls := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return nil, timeoutError{}
	})}

	req, err := http.NewRequest(http.MethodGet, "http://papers.invalid/", nil)
	require.NoError(t, err)

	_, err = DoWithRetry(context.Background(), client, req, 2)
	require.Error(t, err)
	var netErr net.Error
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryDoesNotRetryOtherTransportErrors(t *testing.T) {
	fastBackoff(t)

	calls := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("kaputtes zertifikat")
	})}

	req, err := http.NewRequest(http.MethodGet, "http://papers.invalid/", nil)
	require.NoError(t, err)

	_, err = DoWithRetry(context.Background(), client, req, 5)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryableError(t *testing.T) {
	assert.True(t, RetryableError(timeoutError{}))
	assert.True(t, RetryableError(&url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}))
	assert.True(t, RetryableError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.False(t, RetryableError(context.Canceled))
	assert.False(t, RetryableError(context.DeadlineExceeded))
	assert.False(t, RetryableError(errors.New("kaputt")))
}

func TestDoWithRetryHonorsContextCancel(t *testing.T) {
	// Lange Wartezeit erzwingen, damit der Abbruch während des Backoffs greift.
	old := RateLimitBaseDelay
	RateLimitBaseDelay = time.Minute
	defer func() { RateLimitBaseDelay = old }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, srv.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(http.StatusTooManyRequests))
	assert.True(t, Retryable(http.StatusInternalServerError))
	assert.True(t, Retryable(http.StatusBadGateway))
	assert.False(t, Retryable(http.StatusOK))
	assert.False(t, Retryable(http.StatusBadRequest))
	assert.False(t, Retryable(http.StatusNotFound))
}
