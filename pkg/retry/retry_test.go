package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) HTTPStatus() int { return int(e) }

func TestDoAttempts(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		err      error
		want     int
	}{
		{"timeout exhausts attempts", 3, timeoutError{}, 3},
		{"wrapped timeout", 5, fmt.Errorf("upload: %w", timeoutError{}), 5},
		{"deadline exceeded", 2, context.DeadlineExceeded, 2},
		{"transport error fails fast", 3, errors.New("connection refused"), 1},
		{"zero attempts means one", 0, timeoutError{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			err := Policy{Attempts: tt.attempts}.Do(context.Background(), func(context.Context, int) error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Do() err = %v; want %v", err, tt.err)
			}
			if calls != tt.want {
				t.Fatalf("Do() calls = %d; want %d", calls, tt.want)
			}
		})
	}
}

func TestDoEventuallySucceeds(t *testing.T) {
	var calls int
	err := Default().Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return timeoutError{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() err = %v; want nil", err)
	}
	if calls != 3 {
		t.Fatalf("Do() calls = %d; want 3", calls)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Backoff: []time.Duration{time.Hour}}
	var calls int
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return timeoutError{}
	})
	if err == nil {
		t.Fatal("Do() err = nil; want error")
	}
	if calls != 1 {
		t.Fatalf("Do() calls = %d; want 1", calls)
	}
}

func TestDoBackoff(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: []time.Duration{10 * time.Millisecond}}
	start := time.Now()
	_ = p.Do(context.Background(), func(context.Context, int) error {
		return timeoutError{}
	})
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("Do() took %s; want at least 20ms", elapsed)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{timeoutError{}, true},
		{statusError(503), true},
		{fmt.Errorf("wrapped: %w", statusError(429)), true},
		{statusError(400), false},
		{errors.New("boom"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}

func TestCustomRetryable(t *testing.T) {
	p := Policy{Attempts: 4, Retryable: IsTransient}
	var calls int
	_ = p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return statusError(502)
	})
	if calls != 4 {
		t.Fatalf("Do() calls = %d; want 4", calls)
	}
}
