package telegram

import "fmt"

// APIResponse - общая обёртка ответа Bot API.
type APIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// APIError - ошибка Bot API с описанием от Telegram (например, "Bad Request: chat not found").
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram api status %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram api status %d: %s", e.StatusCode, e.Description)
}
