package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
)

// mockTelegramClient - мок для тестирования Sender
type mockTelegramClient struct {
	sendMessageFunc func(ctx context.Context, chatID string, text string, parseMode string) error
	calls           []string
}

func (m *mockTelegramClient) SendMessage(ctx context.Context, chatID string, text string, parseMode string) error {
	m.calls = append(m.calls, chatID+":"+text)
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, chatID, text, parseMode)
	}
	return nil
}

func newTestSender(client TelegramClient, chatIDs []string) (*Sender, *[]time.Duration) {
	s := NewSender(client, chatIDs, logger.New(io.Discard, false))
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return s, &sleeps
}

func TestSender_Send(t *testing.T) {
	tests := []struct {
		name      string
		chatIDs   []string
		chunks    []string
		mockFunc  func(ctx context.Context, chatID string, text string, parseMode string) error
		wantErr   bool
		wantCalls int
	}{
		{
			name:    "no chats",
			chatIDs: nil,
			chunks:  []string{"test"},
			wantErr: true,
		},
		{
			name:    "no messages",
			chatIDs: []string{"123"},
			chunks:  nil,
			wantErr: true,
		},
		{
			name:      "successful send",
			chatIDs:   []string{"123"},
			chunks:    []string{"Message 1"},
			wantCalls: 1,
		},
		{
			name:      "multiple chats and messages",
			chatIDs:   []string{"123", "456"},
			chunks:    []string{"Message 1", "Message 2"},
			wantCalls: 4,
		},
		{
			name:    "retryable error exhausts attempts",
			chatIDs: []string{"123"},
			chunks:  []string{"Message 1"},
			mockFunc: func(ctx context.Context, chatID string, text string, parseMode string) error {
				return errors.New("network timeout")
			},
			wantErr:   true,
			wantCalls: retryAttempts,
		},
		{
			name:    "non-retryable error stops that chat only",
			chatIDs: []string{"bad", "good"},
			chunks:  []string{"Message 1", "Message 2"},
			mockFunc: func(ctx context.Context, chatID string, text string, parseMode string) error {
				if chatID == "bad" {
					return &APIError{StatusCode: 400, Description: "Bad Request: chat not found"}
				}
				return nil
			},
			wantErr:   true,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockTelegramClient{sendMessageFunc: tt.mockFunc}
			sender, _ := newTestSender(mockClient, tt.chatIDs)

			err := sender.Send(context.Background(), formatter.Document{Chunks: tt.chunks})
			if (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(mockClient.calls) != tt.wantCalls {
				t.Errorf("calls = %d (%v), want %d", len(mockClient.calls), mockClient.calls, tt.wantCalls)
			}
		})
	}
}

func TestSender_RetryDelays(t *testing.T) {
	attempts := 0
	mockClient := &mockTelegramClient{sendMessageFunc: func(ctx context.Context, chatID, text, parseMode string) error {
		attempts++
		if attempts < 3 {
			return errors.New("telegram api status 502")
		}
		return nil
	}}
	sender, sleeps := newTestSender(mockClient, []string{"1"})

	if err := sender.Send(context.Background(), formatter.Document{Chunks: []string{"m"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", *sleeps, want)
	}
}

func TestSender_RateLimit(t *testing.T) {
	mockClient := &mockTelegramClient{}
	sender, sleeps := newTestSender(mockClient, []string{"1"})
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	sender.now = func() time.Time { return fixed }

	if err := sender.Send(context.Background(), formatter.Document{Chunks: []string{"a", "b", "c"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 pauses", *sleeps)
	}
	for _, d := range *sleeps {
		if d != rateLimitDelay {
			t.Errorf("pause = %v, want %v", d, rateLimitDelay)
		}
	}
}

func TestSender_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockClient := &mockTelegramClient{}
	sender, _ := newTestSender(mockClient, []string{"1"})
	if err := sender.Send(ctx, formatter.Document{Chunks: []string{"a"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
	if len(mockClient.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(mockClient.calls))
	}
}

func TestSender_isRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "retryable network error", err: errors.New("network timeout"), want: true},
		{name: "non-retryable chat not found", err: errors.New("chat not found"), want: false},
		{name: "non-retryable bot blocked", err: errors.New("Forbidden: bot was blocked by the user"), want: false},
		{name: "non-retryable message too long", err: errors.New("message is too long"), want: false},
		{name: "api error description", err: &APIError{StatusCode: 400, Description: "Bad Request: can't parse entities"}, want: false},
		{name: "server error", err: &APIError{StatusCode: 502}, want: true},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSender_containsIgnoreCase(t *testing.T) {
	tests := []struct {
		s, sub string
		want   bool
	}{
		{s: "Hello World", sub: "world", want: true},
		{s: "HELLO WORLD", sub: "hello", want: true},
		{s: "Hello World", sub: "test", want: false},
	}
	for _, tt := range tests {
		if got := containsIgnoreCase(tt.s, tt.sub); got != tt.want {
			t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tt.s, tt.sub, got, tt.want)
		}
	}
}

func TestClient_SendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		if gotBody["chat_id"] == "missing" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
			return
		}
		io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
	}))
	defer server.Close()

	client := NewClient("TOKEN", server.URL)

	if err := client.SendMessage(context.Background(), "42", "hello", "Markdown"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["text"] != "hello" || gotBody["parse_mode"] != "Markdown" {
		t.Errorf("body = %v", gotBody)
	}

	err := client.SendMessage(context.Background(), "missing", "hello", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || !strings.Contains(apiErr.Description, "chat not found") {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if isRetryableError(err) {
		t.Error("chat not found must not be retried")
	}
}

func TestClient_SendMessage_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>gateway</html>")
	}))
	defer server.Close()

	err := NewClient("TOKEN", server.URL).SendMessage(context.Background(), "42", "hello", "")
	if err == nil {
		t.Fatal("SendMessage() want error for non-JSON body")
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("err = %v, want wrapped *json.SyntaxError", err)
	}
	if !strings.Contains(err.Error(), "status 200") {
		t.Errorf("err = %v, want status in message", err)
	}
}
