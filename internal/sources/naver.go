package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maine/news_digest/internal/htmltext"
	"github.com/maine/news_digest/internal/news"
)

// DefaultNaverURL - эндпоинт поиска новостей Naver.
const DefaultNaverURL = "https://openapi.naver.com/v1/search/news.json"

// ErrMissingCredentials возвращается, когда для Naver не заданы client id/secret.
var ErrMissingCredentials = errors.New("naver: missing client credentials")

// NaverConfig - параметры клиента Naver Search API.
type NaverConfig struct {
	ClientID     string
	ClientSecret string
	// BaseURL подменяется в тестах (пусто - DefaultNaverURL).
	BaseURL     string
	MaxPerQuery int
	HTTPClient  *http.Client
	Clock       func() time.Time
}

// Naver ищет новости через Naver Search API.
type Naver struct {
	cfg NaverConfig
}

var _ Provider = (*Naver)(nil)

// NewNaver создаёт провайдер Naver.
func NewNaver(cfg NaverConfig) *Naver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNaverURL
	}
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = DefaultMaxPerQuery
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Naver{cfg: cfg}
}

// Name реализует Provider.
func (n *Naver) Name() string { return "naver" }

type naverResponse struct {
	Items []naverItem `json:"items"`
}

type naverItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// Fetch реализует Provider.
func (n *Naver) Fetch(ctx context.Context, keyword string) ([]news.Article, error) {
	if n.cfg.ClientID == "" || n.cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("query", keyword)
	params.Set("display", "20")
	params.Set("start", "1")
	params.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.cfg.ClientID)
	req.Header.Set("X-Naver-Client-Secret", n.cfg.ClientSecret)
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("naver api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}

	now := n.cfg.Clock()
	articles := make([]news.Article, 0, len(payload.Items))
	for _, item := range payload.Items {
		var published *time.Time
		if t, ok := parseTime(item.PubDate); ok {
			published = &t
		}
		if !isToday(published, now) {
			continue
		}

		title := htmltext.Clean(item.Title)
		content := htmltext.Clean(item.Description)
		if !MatchesKeyword(keyword, title, content) {
			continue
		}

		link := strings.TrimSpace(item.OriginalLink)
		if link == "" {
			link = strings.TrimSpace(item.Link)
		}

		article := news.Article{
			Title:    title,
			URL:      link,
			Content:  content,
			Source:   "Naver News",
			Language: "ko",
			Keyword:  keyword,
		}
		if published != nil {
			article.PublishedAt = *published
		}
		articles = append(articles, article)
	}

	return limit(articles, n.cfg.MaxPerQuery), nil
}
