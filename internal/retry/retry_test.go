package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return ctx.Err()
}

func TestPolicy_Do(t *testing.T) {
	errTemp := errors.New("temporary")
	errFatal := errors.New("fatal")

	tests := []struct {
		name       string
		policy     Policy
		failures   []error
		wantCalls  int
		wantDelays []time.Duration
		wantErr    error
	}{
		{
			name:      "success on first attempt",
			policy:    Policy{MaxAttempts: 3, Delay: 5 * time.Second},
			wantCalls: 1,
		},
		{
			name:       "fixed backoff until success",
			policy:     Policy{MaxAttempts: 3, Delay: 5 * time.Second},
			failures:   []error{errTemp, errTemp},
			wantCalls:  3,
			wantDelays: []time.Duration{5 * time.Second, 5 * time.Second},
		},
		{
			name:       "exhausted",
			policy:     Policy{MaxAttempts: 3, Delay: time.Second, Backoff: Exponential},
			failures:   []error{errTemp, errTemp, errTemp},
			wantCalls:  3,
			wantDelays: []time.Duration{time.Second, 2 * time.Second},
			wantErr:    ErrExhausted,
		},
		{
			name: "non-retryable stops immediately",
			policy: Policy{
				MaxAttempts: 3,
				Delay:       time.Second,
				Retryable:   func(err error) bool { return !errors.Is(err, errFatal) },
			},
			failures:  []error{errFatal},
			wantCalls: 1,
			wantErr:   errFatal,
		},
		{
			name:       "zero attempts means one",
			policy:     Policy{},
			failures:   []error{errTemp},
			wantCalls:  1,
			wantErr:    ErrExhausted,
			wantDelays: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &fakeSleeper{}
			tt.policy.Sleep = sleeper.Sleep

			calls := 0
			err := tt.policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
				calls++
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.wantErr == nil && err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Do() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if diff := cmp.Diff(tt.wantDelays, sleeper.delays); diff != "" {
				t.Errorf("delays mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPolicy_Do_ExhaustedWrapsLastError(t *testing.T) {
	last := errors.New("smtp: 421 try later")
	p := Policy{MaxAttempts: 2, Sleep: (&fakeSleeper{}).Sleep}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error { return last })
	if !errors.Is(err, last) {
		t.Errorf("Do() error = %v, want wrapped %v", err, last)
	}
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Delay: time.Hour}

	calls := 0
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicy_DelayFor(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", Policy{Delay: 5 * time.Second}, 3, 5 * time.Second},
		{"linear", Policy{Delay: 2 * time.Second, Backoff: Linear}, 3, 6 * time.Second},
		{"exponential", Policy{Delay: 2 * time.Second, Backoff: Exponential}, 3, 8 * time.Second},
		{"capped", Policy{Delay: 2 * time.Second, Backoff: Linear, MaxDelay: 3 * time.Second}, 5, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.DelayFor(tt.attempt); got != tt.want {
				t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestPolicy_OnRetry(t *testing.T) {
	var seen []int
	p := Policy{
		MaxAttempts: 3,
		Sleep:       (&fakeSleeper{}).Sleep,
		OnRetry:     func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) },
	}
	_ = p.Do(context.Background(), func(ctx context.Context, attempt int) error { return errors.New("x") })
	if diff := cmp.Diff([]int{1, 2}, seen); diff != "" {
		t.Errorf("OnRetry attempts mismatch (-want +got):\n%s", diff)
	}
}
