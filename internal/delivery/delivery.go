package delivery

import (
	"context"
	"log/slog"

	"github.com/maine/news_digest/internal/formatter"
	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
	"github.com/maine/news_digest/internal/summarizer"
)

// DefaultNativeLanguage - язык читателя; статьи на нём не суммаризируются.
const DefaultNativeLanguage = "ko"

// Channel - транспорт, доставляющий готовый дайджест (почта, Telegram).
type Channel interface {
	Name() string
	Send(ctx context.Context, doc formatter.Document) error
}

// Summarizer сокращает текст статьи. При неудаче возвращает маркер, а не ошибку.
type Summarizer interface {
	Summarize(ctx context.Context, text string) string
}

// Renderer превращает записи в документ для каналов.
type Renderer interface {
	Render(entries []news.DigestEntry) (formatter.Document, error)
}

// Config перечисляет зависимости сервиса доставки.
type Config struct {
	// Summarizer может быть nil: тогда показываются исходные тексты.
	Summarizer     Summarizer
	Renderer       Renderer
	Channels       []Channel
	NativeLanguage string
}

// Service реализует app.Deliverer: суммаризация, рендеринг и отправка по всем каналам.
type Service struct {
	summarizer Summarizer
	renderer   Renderer
	channels   []Channel
	native     string
	logger     *slog.Logger
}

// New создаёт сервис доставки.
func New(cfg Config, log *slog.Logger) *Service {
	native := cfg.NativeLanguage
	if native == "" {
		native = DefaultNativeLanguage
	}
	return &Service{
		summarizer: cfg.Summarizer,
		renderer:   cfg.Renderer,
		channels:   cfg.Channels,
		native:     native,
		logger:     logger.OrDefault(log),
	}
}

// Deliver отправляет статьи одним дайджестом. true только если все каналы приняли дайджест.
func (s *Service) Deliver(ctx context.Context, articles []news.Article) bool {
	if len(articles) == 0 {
		return true
	}
	if s.renderer == nil || len(s.channels) == 0 {
		s.logger.Error("delivery not configured", "channels", len(s.channels))
		return false
	}

	entries := s.buildEntries(ctx, articles)

	doc, err := s.renderer.Render(entries)
	if err != nil {
		s.logger.Error("render digest failed", "err", err)
		return false
	}

	ok := true
	for _, ch := range s.channels {
		if err := ch.Send(ctx, doc); err != nil {
			s.logger.Error("digest delivery failed", "channel", ch.Name(), "err", err)
			ok = false
			continue
		}
		s.logger.Info("digest delivered", "channel", ch.Name(), "articles", len(entries))
	}
	return ok
}

func (s *Service) buildEntries(ctx context.Context, articles []news.Article) []news.DigestEntry {
	entries := make([]news.DigestEntry, 0, len(articles))
	var summarized, failed int

	for _, article := range articles {
		entry := news.DigestEntry{Article: article}
		if s.summarizer != nil && article.NeedsSummary(s.native) && article.Content != "" {
			entry.Summary = s.summarizer.Summarize(ctx, article.Content)
			entry.SummaryFailed = summarizer.IsFailure(entry.Summary)
			summarized++
			if entry.SummaryFailed {
				failed++
				s.logger.Warn("summary failed", "url", article.URL, "marker", entry.Summary)
			}
		}
		entries = append(entries, entry)
	}

	if summarized > 0 {
		s.logger.Info("articles summarized", "total", summarized, "failed", failed)
	}
	return entries
}
