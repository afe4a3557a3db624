package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath - путь к конфигурации по умолчанию.
const DefaultPath = "configs/digest.yaml"

// Бэкенды журнала.
const (
	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
)

// Бэкенды суммаризации.
const (
	SummaryOpenAI = "openai"
	SummaryGemini = "gemini"
	SummaryNone   = "none"
)

// DefaultKeywords - ключевые слова, если ничего не задано.
var DefaultKeywords = []string{
	"AI", "Trump", "Elon Musk", "IT", "OpenAI", "Sam Altman", "Google", "US",
	"삼성", "Samsung", "정치", "박물관", "전시회", "그림",
}

// DefaultBatchTimes - время отправки дайджестов.
var DefaultBatchTimes = []string{"09:00", "15:00", "21:00"}

type (
	// Root объединяет все конфигурационные блоки.
	Root struct {
		Keywords   []string `yaml:"keywords"`
		BatchTimes []string `yaml:"batch_times"`
		Debug      bool     `yaml:"debug"`
		Ledger     Ledger   `yaml:"ledger"`
		Fetch      Fetch    `yaml:"fetch"`
		Summary    Summary  `yaml:"summary"`
		Delivery   Delivery `yaml:"delivery"`
	}

	// Ledger описывает хранение журнала отправленных статей.
	Ledger struct {
		Backend string `yaml:"backend"`
		// Path - базовое имя файлов журнала ("sent_articles.json") или путь к базе SQLite.
		Path     string `yaml:"path"`
		KeepDays int    `yaml:"keep_days"`
	}

	// Fetch содержит параметры сбора новостей.
	Fetch struct {
		Timeout     time.Duration `yaml:"timeout"`
		Ceiling     time.Duration `yaml:"ceiling"`
		Parallelism int           `yaml:"parallelism"`
		MaxPerQuery int           `yaml:"max_per_query"`
		BBCFeeds    []string      `yaml:"bbc_feeds,omitempty"`
		// KeywordAliases переводит корейские ключевые слова для англоязычных лент.
		KeywordAliases map[string]string `yaml:"keyword_aliases,omitempty"`
	}

	// Summary содержит настройки суммаризации.
	Summary struct {
		Provider       string        `yaml:"provider"`
		Model          string        `yaml:"model"`
		NativeLanguage string        `yaml:"native_language"`
		MaxAttempts    int           `yaml:"max_attempts"`
		BaseDelay      time.Duration `yaml:"base_delay"`
		MaxChars       int           `yaml:"max_chars"`
	}

	// Delivery описывает каналы доставки.
	Delivery struct {
		SMTPHost            string        `yaml:"smtp_host"`
		SMTPPort            int           `yaml:"smtp_port"`
		MaxAttempts         int           `yaml:"max_attempts"`
		RetryDelay          time.Duration `yaml:"retry_delay"`
		Timeout             time.Duration `yaml:"timeout"`
		TelegramChats       []string      `yaml:"telegram_chats,omitempty"`
		MaxTelegramMessages int           `yaml:"max_telegram_messages"`
	}
)

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() Root {
	return Root{
		Keywords:   append([]string(nil), DefaultKeywords...),
		BatchTimes: append([]string(nil), DefaultBatchTimes...),
		Ledger: Ledger{
			Backend:  LedgerFile,
			Path:     "sent_articles.json",
			KeepDays: 1,
		},
		Fetch: Fetch{
			Timeout:     30 * time.Second,
			Ceiling:     2 * time.Minute,
			Parallelism: 4,
			MaxPerQuery: 10,
		},
		Summary: Summary{
			Provider:       SummaryOpenAI,
			NativeLanguage: "ko",
			MaxAttempts:    3,
			BaseDelay:      2 * time.Second,
			MaxChars:       2000,
		},
		Delivery: Delivery{
			SMTPHost:            "smtp.gmail.com",
			SMTPPort:            587,
			MaxAttempts:         3,
			RetryDelay:          5 * time.Second,
			Timeout:             30 * time.Second,
			MaxTelegramMessages: 10,
		},
	}
}

// LoadRoot читает основной файл конфигурации поверх значений по умолчанию.
// Отсутствующий файл не ошибка: используются значения по умолчанию.
func LoadRoot(path string) (Root, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Root{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Root{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
