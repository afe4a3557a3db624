package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel - модель Gemini по умолчанию.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient реализует Client через официальный SDK Gemini.
// Системная инструкция передаётся в начале промпта.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient создаёт клиента и явно передаёт ключ в SDK.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Complete реализует Client.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("get text from result: %w", err)
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindCanceled, Err: err}
	}

	errStr := err.Error()
	switch {
	case isRPDQuotaError(errStr):
		return &APIError{Kind: KindQuota, Err: fmt.Errorf("%w (daily limit reached): %w", ErrQuotaExceeded, err)}
	case isRateLimitError(errStr):
		return &APIError{Kind: KindRateLimit, Err: err}
	case isServiceUnavailableError(errStr):
		return &APIError{Kind: KindUnavailable, Err: err}
	case isTemporaryError(errStr):
		return &APIError{Kind: KindTemporary, Err: err}
	case isQuotaExceededError(errStr):
		return &APIError{Kind: KindQuota, Err: fmt.Errorf("%w: %w", ErrQuotaExceeded, err)}
	default:
		return &APIError{Kind: KindUnknown, Err: err}
	}
}

// isRPDQuotaError проверяет, является ли ошибка 429 исчерпанием дневного лимита (RPD).
// Признаки: "limit: 20" или метрика generate_content_free_tier_requests.
func isRPDQuotaError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	if !strings.Contains(errLower, "429") {
		return false
	}
	return strings.Contains(errLower, "limit: 20") ||
		strings.Contains(errLower, "generate_content_free_tier_requests")
}

// isRateLimitError - 429 по RPM/TPM (не дневной лимит).
func isRateLimitError(errStr string) bool {
	if isRPDQuotaError(errStr) {
		return false
	}
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "429") ||
		strings.Contains(errLower, "too many requests") ||
		strings.Contains(errLower, "resource exhausted")
}

// isServiceUnavailableError - 503, модель перегружена.
func isServiceUnavailableError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "service unavailable") ||
		strings.Contains(errLower, "overloaded")
}

// isTemporaryError - 500, 502, 504.
func isTemporaryError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "500") ||
		strings.Contains(errLower, "502") ||
		strings.Contains(errLower, "504") ||
		strings.Contains(errLower, "internal server error") ||
		strings.Contains(errLower, "bad gateway") ||
		strings.Contains(errLower, "gateway timeout")
}

func isQuotaExceededError(errStr string) bool {
	errLower := strings.ToLower(errStr)
	return strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "daily limit") ||
		strings.Contains(errLower, "403")
}
