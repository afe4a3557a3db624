package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted оборачивает последнюю ошибку, когда все попытки израсходованы.
var ErrExhausted = errors.New("retry attempts exhausted")

// Backoff задаёт рост задержки между попытками.
type Backoff int

const (
	// Fixed - одинаковая задержка перед каждой повторной попыткой.
	Fixed Backoff = iota
	// Linear - задержка Delay * номер попытки.
	Linear
	// Exponential - задержка Delay * 2^(попытка-1).
	Exponential
)

// SleepFunc ждёт d или отмены контекста.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy описывает ограниченную политику повторов.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     Backoff
	// MaxDelay ограничивает задержку сверху (0 - без ограничения).
	MaxDelay time.Duration
	// Retryable решает, имеет ли смысл повторять после ошибки (nil - всегда).
	Retryable func(error) bool
	// Sleep подменяется в тестах (nil - реальное ожидание).
	Sleep SleepFunc
	// OnRetry вызывается перед ожиданием очередной попытки.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do вызывает fn до MaxAttempts раз. attempt начинается с 1.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.DelayFor(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// DelayFor возвращает задержку после неудачной попытки attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	delay := p.Delay
	switch p.Backoff {
	case Linear:
		delay = p.Delay * time.Duration(attempt)
	case Exponential:
		delay = p.Delay << (attempt - 1)
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Sleep - реальное ожидание с учётом отмены контекста.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
