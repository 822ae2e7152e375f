// Package httputil bündelt HTTP-Hilfsfunktionen, die alle Provider teilen.
package httputil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Basisverzögerungen für Backoff. Tests setzen sie herab, um echte
// Wartezeiten zu vermeiden.
var (
	RateLimitBaseDelay = 15 * time.Second
	RateLimitStepDelay = 10 * time.Second
	ServerErrBaseDelay = 10 * time.Second
	MaxDelay           = 60 * time.Second
)

const defaultMaxRetries = 5

// Retryable meldet, ob ein Statuscode einen weiteren Versuch rechtfertigt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// RetryableError meldet, ob ein Transportfehler einen weiteren Versuch
// rechtfertigt: Timeouts und Verbindungsfehler ja, Context-Abbrüche und
// alles Übrige nein.
func RetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// DoWithRetry führt einen HTTP-Request aus und wiederholt ihn bei
// HTTP 429 und 5xx. Bei 429 wird ein Retry-After-Header respektiert,
// sonst wächst die Wartezeit linear (15s, 25s, 35s, ...). Bei 5xx
// verdoppelt sich die Wartezeit pro Versuch (10s, 20s, 40s, ...),
// gedeckelt auf MaxDelay.
//
// Timeouts und Verbindungsfehler werden wie 5xx behandelt und mit
// demselben Backoff wiederholt; andere Transportfehler kommen sofort
// zurück. Bei maxRetries <= 0 gilt der Default (5). Vor jedem neuen
// Versuch wird der Body geleert und geschlossen; wird der Context
// während der Wartezeit abgebrochen, kommt ctx.Err() zurück. Nach
// Ausschöpfen der Versuche wird die letzte Response unverändert
// zurückgegeben, damit der Aufrufer sie prüfen kann.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if attempt >= maxRetries || !RetryableError(err) {
				return nil, err
			}
			if err := sleep(ctx, capDelay(ServerErrBaseDelay<<attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if !Retryable(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		delay := backoffDelay(resp, attempt)

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func backoffDelay(resp *http.Response, attempt int) time.Duration {
	var delay time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		if delay == 0 {
			delay = RateLimitBaseDelay + time.Duration(attempt)*RateLimitStepDelay
		}
	} else {
		delay = ServerErrBaseDelay << attempt
	}
	return capDelay(delay)
}

func capDelay(delay time.Duration) time.Duration {
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
