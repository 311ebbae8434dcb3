package retry

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of attempts, values below 1 mean 1.
	Attempts int
	// Backoff is the wait before each retry. The last value is reused when
	// there are more retries than entries. Empty means no wait.
	Backoff []time.Duration
	// Retryable decides if an error deserves another attempt. Nil means only
	// timeouts are retried.
	Retryable func(error) bool
	// Debug logs every retry.
	Debug bool
}

// Default retries timeouts up to three attempts without waiting.
func Default() Policy {
	return Policy{Attempts: 3}
}

// Do runs fn until it succeeds, returns a non retryable error or the attempts
// are exhausted. The returned error is always the one of the last attempt.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.Attempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTimeout
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		// Parent context is done, retrying won't help
		if ctx.Err() != nil {
			return err
		}
		if !retryable(err) {
			return err
		}
		if p.Debug {
			log.Printf("retry: attempt %d/%d failed, retrying: %v\n", attempt, maxAttempts, err)
		}

		wait := p.wait(attempt)
		if wait <= 0 {
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p Policy) wait(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// IsTimeout reports whether err was caused by a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode returns the HTTP status code carried by err, if any.
func StatusCode(err error) (int, bool) {
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		return s.HTTPStatus(), true
	}
	return 0, false
}

// IsTransient reports whether err is a timeout or a status code that usually
// goes away by itself.
func IsTransient(err error) bool {
	if IsTimeout(err) {
		return true
	}
	code, ok := StatusCode(err)
	if !ok {
		return false
	}
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout, 520:
		return true
	}
	return false
}
