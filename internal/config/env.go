package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/maine/news_digest/internal/schedule"
)

// EnvConfig содержит токены и другие секреты из окружения.
type EnvConfig struct {
	NaverClientID     string
	NaverClientSecret string
	OpenAIAPIKey      string
	GeminiAPIKey      string
	GmailAddress      string
	GmailAppPassword  string
	Recipients        []string
	TelegramBotToken  string
	TelegramChatIDs   []string
}

// LoadDotEnv подгружает переменные из .env, не перезаписывая уже заданные.
// Отсутствие файла не ошибка.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadEnvConfig читает секреты из окружения.
func LoadEnvConfig() EnvConfig {
	return envFrom(os.Getenv)
}

func envFrom(getenv func(string) string) EnvConfig {
	return EnvConfig{
		NaverClientID:     getenv("NAVER_CLIENT_ID"),
		NaverClientSecret: getenv("NAVER_CLIENT_SECRET"),
		OpenAIAPIKey:      getenv("OPENAI_API_KEY"),
		GeminiAPIKey:      getenv("GEMINI_API_KEY"),
		GmailAddress:      getenv("GMAIL_ADDRESS"),
		GmailAppPassword:  getenv("GMAIL_APP_PASSWORD"),
		Recipients:        splitList(getenv("RECIPIENT_EMAIL")),
		TelegramBotToken:  getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatIDs:   splitList(getenv("TELEGRAM_CHAT_IDS")),
	}
}

// HasNaver сообщает, заданы ли ключи Naver Search API.
func (e EnvConfig) HasNaver() bool {
	return e.NaverClientID != "" && e.NaverClientSecret != ""
}

// ApplyEnv переопределяет поля конфигурации переменными окружения.
func ApplyEnv(cfg *Root) error {
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg *Root, getenv func(string) string) error {
	if v := splitList(getenv("KEYWORDS")); len(v) > 0 {
		cfg.Keywords = v
	}
	if v := splitList(getenv("BATCH_TIMES")); len(v) > 0 {
		cfg.BatchTimes = v
	}
	if v := strings.TrimSpace(getenv("DB_FILE")); v != "" {
		cfg.Ledger.Path = v
	}
	if v := strings.TrimSpace(getenv("LEDGER_BACKEND")); v != "" {
		cfg.Ledger.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("SUMMARY_PROVIDER")); v != "" {
		cfg.Summary.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("DEBUG")); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate проверяет, что конфигурации хватает для запуска.
func Validate(cfg Root, env EnvConfig) error {
	var errs []error

	if len(cfg.Keywords) == 0 {
		errs = append(errs, errors.New("no keywords configured"))
	}
	if _, err := schedule.ParseTimes(cfg.BatchTimes); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Ledger.Backend {
	case LedgerFile, LedgerSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend))
	}
	if strings.TrimSpace(cfg.Ledger.Path) == "" {
		errs = append(errs, errors.New("ledger path is empty"))
	}

	switch cfg.Summary.Provider {
	case SummaryOpenAI:
		if env.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is required (or set SUMMARY_PROVIDER=none)"))
		}
	case SummaryGemini:
		if env.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required (or set SUMMARY_PROVIDER=none)"))
		}
	case SummaryNone:
	default:
		errs = append(errs, fmt.Errorf("unknown summary provider %q", cfg.Summary.Provider))
	}

	if env.GmailAddress == "" || env.GmailAppPassword == "" {
		errs = append(errs, errors.New("GMAIL_ADDRESS and GMAIL_APP_PASSWORD environment variables are required"))
	}
	if len(env.Recipients) == 0 {
		errs = append(errs, errors.New("RECIPIENT_EMAIL environment variable is required"))
	}

	return errors.Join(errs...)
}

// TelegramChats возвращает чаты Telegram: из окружения, иначе из конфигурации.
// Пустой результат означает, что канал отключён.
func TelegramChats(cfg Root, env EnvConfig) []string {
	if env.TelegramBotToken == "" {
		return nil
	}
	if len(env.TelegramChatIDs) > 0 {
		return env.TelegramChatIDs
	}
	return cfg.Delivery.TelegramChats
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
