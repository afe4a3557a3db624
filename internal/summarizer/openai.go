package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel - модель по умолчанию.
const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIConfig - параметры клиента OpenAI.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIClient реализует Client через официальный SDK (chat completions).
type OpenAIClient struct {
	client openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient создаёт клиента. Повторы SDK отключены: ими управляет Summarizer.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Complete реализует Client.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature:     openai.Float(req.Temperature),
		PresencePenalty: openai.Float(0.1),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindCanceled, Err: err}
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return &APIError{Kind: KindConnection, Err: err}
	}

	if apiErr.Code == "insufficient_quota" || apiErr.Type == "insufficient_quota" ||
		strings.Contains(apiErr.Error(), "insufficient_quota") {
		return &APIError{Kind: KindQuota, Err: fmt.Errorf("%w: %w", ErrQuotaExceeded, err)}
	}

	switch code := apiErr.StatusCode; {
	case code == http.StatusTooManyRequests:
		return &APIError{Kind: KindRateLimit, Err: err}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &APIError{Kind: KindAuth, Err: err}
	case code == http.StatusServiceUnavailable:
		return &APIError{Kind: KindUnavailable, Err: err}
	case code >= 500:
		return &APIError{Kind: KindTemporary, Err: err}
	case code >= 400:
		return &APIError{Kind: KindBadRequest, Err: err}
	default:
		return &APIError{Kind: KindUnknown, Err: err}
	}
}
