package summarizer

import (
	"context"
	"errors"
	"fmt"
)

// Client определяет интерфейс LLM-бэкенда.
// Это позволяет легко создавать моки для тестирования.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request - один запрос на генерацию.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

var (
	// ErrQuotaExceeded - квота API исчерпана; повторять бессмысленно.
	ErrQuotaExceeded = errors.New("api quota exceeded")
	// ErrEmptyResponse - модель вернула пустой текст.
	ErrEmptyResponse = errors.New("empty model response")
)

// APIError - классифицированная ошибка бэкенда. Kind попадает в маркер неудачи.
type APIError struct {
	Kind string
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Виды ошибок API.
const (
	KindQuota       = "QuotaExceeded"
	KindRateLimit   = "RateLimit"
	KindUnavailable = "ServiceUnavailable"
	KindTemporary   = "TemporaryError"
	KindAuth        = "AuthenticationError"
	KindBadRequest  = "BadRequest"
	KindConnection  = "ConnectionError"
	KindCanceled    = "Canceled"
	KindUnknown     = "APIError"
)

// errorKind извлекает вид ошибки для маркера.
func errorKind(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Kind
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuota
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
