package sources

import (
	"context"
	"strings"
	"time"

	"github.com/maine/news_digest/internal/news"
)

// Provider - источник новостей по ключевому слову.
// Реализации не должны паниковать; оркестратор всё равно страхуется recover'ом.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, keyword string) ([]news.Article, error)
}

const (
	// DefaultMaxPerQuery - предел статей на одно ключевое слово у Naver и Google News.
	DefaultMaxPerQuery = 10
	defaultTimeout     = 15 * time.Second
	userAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// MatchesKeyword проверяет вхождение ключевого слова в любой из текстов без учёта регистра.
func MatchesKeyword(keyword string, texts ...string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	for _, text := range texts {
		if strings.Contains(strings.ToLower(text), kw) {
			return true
		}
	}
	return false
}

// ContainsHangul сообщает, есть ли в строке слоги хангыля.
func ContainsHangul(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}

// isToday считает статью сегодняшней, если дата неизвестна или совпадает с календарным днём now.
func isToday(published *time.Time, now time.Time) bool {
	if published == nil || published.IsZero() {
		return true
	}
	py, pm, pd := published.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return py == ny && pm == nm && pd == nd
}

// parseTime разбирает дату публикации в распространённых форматах RSS и API.
func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 MST",
		"02 Jan 2006 15:04:05 MST",
	}

	for _, f := range formats {
		if t, err := time.Parse(f, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func limit(articles []news.Article, max int) []news.Article {
	if max > 0 && len(articles) > max {
		return articles[:max]
	}
	return articles
}
