package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/retry"
)

const (
	// telegramRateLimit - лимит Telegram Bot API: 30 сообщений в секунду
	telegramRateLimitPerSecond = 30
	// retryAttempts - количество попыток отправки при ошибке
	retryAttempts = 3
	// retryDelay - задержка между попытками
	retryDelay = 2 * time.Second
	// maxRetryDelay - верхняя граница задержки
	maxRetryDelay = 10 * time.Second
	// rateLimitDelay - минимальная задержка между сообщениями для соблюдения rate limit
	rateLimitDelay = time.Second / telegramRateLimitPerSecond // ~33ms между сообщениями

	parseMode = "Markdown"
)

// Sender - канал доставки дайджеста в чаты Telegram.
type Sender struct {
	client  TelegramClient
	chatIDs []string
	logger  *slog.Logger

	now   func() time.Time
	sleep retry.SleepFunc
}

// NewSender создаёт новый экземпляр отправителя.
func NewSender(client TelegramClient, chatIDs []string, log *slog.Logger) *Sender {
	return &Sender{
		client:  client,
		chatIDs: chatIDs,
		logger:  logger.OrDefault(log),
		now:     time.Now,
		sleep:   retry.Sleep,
	}
}

// Name реализует delivery.Channel.
func (s *Sender) Name() string { return "telegram" }

// Send реализует delivery.Channel.
// Отправляет каждое сообщение каждому чату с учётом rate limit и повторов.
// Неудача в одном чате не останавливает отправку в остальные, но возвращается ошибкой.
func (s *Sender) Send(ctx context.Context, doc formatter.Document) error {
	if len(s.chatIDs) == 0 {
		return fmt.Errorf("no telegram chats configured")
	}
	messages := doc.Chunks
	if len(messages) == 0 {
		return fmt.Errorf("no messages to send")
	}

	total := len(s.chatIDs) * len(messages)
	s.logger.Info("sending telegram digest", "chats", len(s.chatIDs), "messages", len(messages), "total", total)

	var (
		errs     []error
		sent     int
		lastSent time.Time
	)

	for _, chatID := range s.chatIDs {
		for i, message := range messages {
			// Контроль rate limit: минимальная задержка между сообщениями
			if !lastSent.IsZero() {
				if wait := rateLimitDelay - s.now().Sub(lastSent); wait > 0 {
					if err := s.sleep(ctx, wait); err != nil {
						return err
					}
				}
			}

			err := s.sendWithRetry(ctx, chatID, message)
			lastSent = s.now()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Error("telegram message failed", "chat_id", chatID, "part", i+1, "err", err)
				errs = append(errs, fmt.Errorf("chat %s part %d: %w", chatID, i+1, err))
				// После сбоя остальные части в этот чат не отправляются.
				break
			}
			sent++
		}
	}

	s.logger.Info("telegram digest sent", "sent", sent, "total", total)
	return errors.Join(errs...)
}

// sendWithRetry отправляет сообщение с повторными попытками при ошибках.
func (s *Sender) sendWithRetry(ctx context.Context, chatID string, message string) error {
	policy := retry.Policy{
		MaxAttempts: retryAttempts,
		Delay:       retryDelay,
		Backoff:     retry.Linear,
		MaxDelay:    maxRetryDelay,
		Retryable:   isRetryableError,
		Sleep:       s.sleep,
	}
	return policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return s.client.SendMessage(ctx, chatID, message, parseMode)
	})
}

// isRetryableError определяет, можно ли повторить отправку при данной ошибке.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Ошибки, при которых повтор не поможет
	nonRetryableErrors := []string{
		"chat not found",
		"bot was blocked",
		"user is deactivated",
		"chat_id is empty",
		"message is too long",
		"bad request",
		"unauthorized",
		"can't parse entities",
	}

	for _, nonRetryable := range nonRetryableErrors {
		if containsIgnoreCase(errStr, nonRetryable) {
			return false
		}
	}

	// По умолчанию считаем ошибку повторяемой (сетевые ошибки, временные проблемы API)
	return true
}

// containsIgnoreCase проверяет, содержит ли строка подстроку (без учёта регистра).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
