package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/retry"
)

const (
	failurePrefix = "[요약 실패"
	// MarkerExhausted - все попытки вернули пустой ответ.
	MarkerExhausted = "[요약 실패 - 최대 재시도 횟수 초과]"

	systemPrompt = "당신은 뉴스 요약 전문가입니다. 정확하고 간결한 한국어 요약을 제공합니다."

	DefaultMaxChars    = 2000
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultTemperature = 0.3
)

// Config - параметры суммаризатора.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxChars    int
	Temperature float64
	// Sleep подменяется в тестах.
	Sleep retry.SleepFunc
}

// Summarizer сокращает и переводит текст статьи на корейский.
// Никогда не возвращает ошибку: неудача выражается маркером в тексте.
type Summarizer struct {
	client Client
	cfg    Config
	logger *slog.Logger
}

// New создаёт суммаризатор.
func New(client Client, cfg Config, log *slog.Logger) *Summarizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Summarizer{client: client, cfg: cfg, logger: logger.OrDefault(log)}
}

// APIFailureMarker - маркер неудачи с видом ошибки API.
func APIFailureMarker(kind string) string {
	return fmt.Sprintf("[요약 실패 - API 오류: %s]", kind)
}

// IsFailure сообщает, является ли результат маркером неудачи.
func IsFailure(summary string) bool {
	return strings.HasPrefix(summary, failurePrefix)
}

// Summarize возвращает краткое изложение text на корейском, "" для пустого текста
// или маркер неудачи.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return ""
	}

	truncated := truncate(clean, s.cfg.MaxChars)
	req := Request{
		System:      systemPrompt,
		User:        buildPrompt(truncated),
		MaxTokens:   maxTokensFor(utf8.RuneCountInString(truncated)),
		Temperature: s.cfg.Temperature,
	}

	policy := retry.Policy{
		MaxAttempts: s.cfg.MaxAttempts,
		Delay:       s.cfg.BaseDelay,
		Backoff:     retry.Exponential,
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrQuotaExceeded)
		},
		Sleep: s.cfg.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			s.logger.Warn("summary attempt failed, retrying",
				"attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "delay", delay, "err", err)
		},
	}

	var summary string
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		out, err := s.client.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return ErrEmptyResponse
		}
		summary = out
		return nil
	})
	if err == nil {
		return summary
	}

	if errors.Is(err, ErrEmptyResponse) {
		s.logger.Warn("summary failed: empty responses", "attempts", s.cfg.MaxAttempts)
		return MarkerExhausted
	}

	kind := errorKind(err)
	s.logger.Error("summary failed", "kind", kind, "err", err)
	return APIFailureMarker(kind)
}

// truncate обрезает text до maxChars символов по границам предложений ". ".
// Если даже первое предложение не помещается, режет жёстко и добавляет "...".
func truncate(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	var b strings.Builder
	n := 0
	for _, sentence := range strings.Split(text, ". ") {
		piece := sentence + ". "
		size := utf8.RuneCountInString(piece)
		if n+size > maxChars {
			break
		}
		b.WriteString(piece)
		n += size
	}

	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	return string([]rune(text)[:maxChars]) + "..."
}

// maxTokensFor подбирает бюджет токенов по длине текста.
func maxTokensFor(length int) int {
	switch {
	case length < 200:
		return 150
	case length < 500:
		return 250
	case length < 1000:
		return 350
	default:
		return 500
	}
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`당신은 전문 뉴스 에디터입니다. 다음 외국어 뉴스 기사를 한국어로 정확하고 간결하게 요약해주세요.

요약 가이드라인:
1. 핵심 내용을 놓치지 말고 정확하게 전달
2. 원문의 톤과 의미를 유지
3. 불필요한 세부사항은 제외
4. 읽기 쉬운 한국어로 작성
5. 3-4문장으로 간결하게 요약

기사:
%s

한국어 요약:`, text)
}
