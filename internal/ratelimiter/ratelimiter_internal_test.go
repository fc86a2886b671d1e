package ratelimiter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestGetDelay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{
			"Private chat - no delay needed",
			123456789,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Private chat - delay needed",
			123456789,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Group chat - no delay needed",
			-123456789,
			now.Add(-4 * time.Second),
			true,
		},
		{
			"Group chat - delay needed",
			-123456789,
			now.Add(-1 * time.Second),
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getDelay(test.chatID, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestDoReturnsSendResult(t *testing.T) {
	rl := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Stop()

	sendErr := errors.New("send failed")
	calls := 0

	err := rl.Do(context.Background(), 42, func(context.Context) error {
		calls++
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}

	// Another chat is not delayed by the first one.
	start := time.Now()
	err = rl.Do(context.Background(), 43, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("unexpected delay for a fresh chat")
	}

	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoDelaysSameChat(t *testing.T) {
	rl := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Stop()

	rl.mu.Lock()
	rl.lastSent[7] = time.Now()
	rl.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	called := false
	err := rl.Do(ctx, 7, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if called {
		t.Fatalf("expected send to be skipped while rate limited")
	}
}

func TestDoAfterStop(t *testing.T) {
	rl := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rl.Stop()

	err := rl.Do(context.Background(), 1, func(context.Context) error {
		return nil
	})
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}
