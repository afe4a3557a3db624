package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/maine/news_digest/internal/htmltext"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

// feedReader загружает и разбирает RSS/Atom-ленты через gofeed.
type feedReader struct {
	client *http.Client
}

func newFeedReader(client *http.Client) feedReader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return feedReader{client: client}
}

func (r feedReader) read(ctx context.Context, feedURL string) ([]*gofeed.Item, error) {
	parser := gofeed.NewParser()
	parser.Client = r.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed.Items, nil
}

// toArticle переводит элемент ленты в статью, если он сегодняшний и содержит ключевое слово.
// match - слово для поиска (для BBC это английский вариант).
func toArticle(item *gofeed.Item, keyword, match, source, language string, now time.Time) (news.Article, bool) {
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return news.Article{}, false
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if !isToday(published, now) {
		return news.Article{}, false
	}

	title := htmltext.Clean(item.Title)
	description := htmltext.Clean(item.Description)
	content := description
	if content == "" {
		content = htmltext.Clean(item.Content)
	}
	if !MatchesKeyword(match, title, description, content) {
		return news.Article{}, false
	}

	article := news.Article{
		Title:    title,
		URL:      strings.TrimSpace(item.Link),
		Content:  content,
		Source:   source,
		Language: language,
		Keyword:  keyword,
	}
	if published != nil {
		article.PublishedAt = *published
	}
	return article, true
}

// DefaultGoogleNewsURL - шаблон поиска Google News RSS (корейская редакция).
const DefaultGoogleNewsURL = "https://news.google.com/rss/search"

// GoogleNewsConfig - параметры провайдера Google News.
type GoogleNewsConfig struct {
	BaseURL     string
	MaxPerQuery int
	HTTPClient  *http.Client
	Clock       func() time.Time
}

// GoogleNews ищет новости через поисковую RSS-ленту Google News.
type GoogleNews struct {
	cfg    GoogleNewsConfig
	reader feedReader
}

var _ Provider = (*GoogleNews)(nil)

// NewGoogleNews создаёт провайдер Google News.
func NewGoogleNews(cfg GoogleNewsConfig) *GoogleNews {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleNewsURL
	}
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = DefaultMaxPerQuery
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &GoogleNews{cfg: cfg, reader: newFeedReader(cfg.HTTPClient)}
}

// Name реализует Provider.
func (g *GoogleNews) Name() string { return "google_news" }

// SearchURL строит адрес ленты для ключевого слова.
func (g *GoogleNews) SearchURL(keyword string) string {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("hl", "ko")
	params.Set("gl", "KR")
	params.Set("ceid", "KR:ko")
	return g.cfg.BaseURL + "?" + params.Encode()
}

// Fetch реализует Provider.
func (g *GoogleNews) Fetch(ctx context.Context, keyword string) ([]news.Article, error) {
	items, err := g.reader.read(ctx, g.SearchURL(keyword))
	if err != nil {
		return nil, err
	}

	now := g.cfg.Clock()
	articles := make([]news.Article, 0, len(items))
	for _, item := range items {
		if article, ok := toArticle(item, keyword, keyword, "Google News", "ko", now); ok {
			articles = append(articles, article)
		}
	}
	return limit(articles, g.cfg.MaxPerQuery), nil
}

// DefaultBBCFeeds - ленты BBC, по которым ищутся англоязычные статьи.
var DefaultBBCFeeds = []string{
	"http://feeds.bbci.co.uk/news/rss.xml",
	"http://feeds.bbci.co.uk/news/technology/rss.xml",
	"http://feeds.bbci.co.uk/news/business/rss.xml",
	"http://feeds.bbci.co.uk/news/world/rss.xml",
}

// DefaultKeywordAliases переводит корейские ключевые слова на английский для поиска в BBC.
var DefaultKeywordAliases = map[string]string{
	"삼성":  "Samsung",
	"정치":  "politics",
	"박물관": "museum",
	"전시회": "exhibition",
	"그림":  "art",
}

// BBCConfig - параметры провайдера BBC.
type BBCConfig struct {
	Feeds      []string
	Aliases    map[string]string
	HTTPClient *http.Client
	Clock      func() time.Time
	Logger     *slog.Logger
}

// BBC ищет ключевое слово в фиксированном наборе лент BBC.
type BBC struct {
	cfg    BBCConfig
	reader feedReader
	logger *slog.Logger
}

var _ Provider = (*BBC)(nil)

// NewBBC создаёт провайдер BBC.
func NewBBC(cfg BBCConfig) *BBC {
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultBBCFeeds
	}
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultKeywordAliases
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &BBC{
		cfg:    cfg,
		reader: newFeedReader(cfg.HTTPClient),
		logger: logger.OrDefault(cfg.Logger),
	}
}

// Name реализует Provider.
func (b *BBC) Name() string { return "bbc" }

// EnglishKeyword возвращает английский вариант ключевого слова.
// Слова без хангыля и слова без перевода возвращаются как есть.
func (b *BBC) EnglishKeyword(keyword string) string {
	if !ContainsHangul(keyword) {
		return keyword
	}
	if alias, ok := b.cfg.Aliases[keyword]; ok && alias != "" {
		return alias
	}
	return keyword
}

// Fetch реализует Provider. Ошибка одной ленты логируется и пропускается;
// ошибка возвращается, только если не прочиталась ни одна лента.
func (b *BBC) Fetch(ctx context.Context, keyword string) ([]news.Article, error) {
	match := b.EnglishKeyword(keyword)
	now := b.cfg.Clock()

	var (
		articles []news.Article
		errs     []error
	)
	for _, feedURL := range b.cfg.Feeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := b.reader.read(ctx, feedURL)
		if err != nil {
			b.logger.Warn("bbc feed failed", "feed", feedURL, "err", err)
			errs = append(errs, err)
			continue
		}
		for _, item := range items {
			if article, ok := toArticle(item, keyword, match, "BBC", "en", now); ok {
				articles = append(articles, article)
			}
		}
	}

	if len(errs) == len(b.cfg.Feeds) {
		return nil, fmt.Errorf("all bbc feeds failed: %w", errors.Join(errs...))
	}
	return articles, nil
}
