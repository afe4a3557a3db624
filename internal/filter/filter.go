package filter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

// Stats - счётчики одного прохода фильтра.
type Stats struct {
	Input          int
	Fresh          int
	Seen           int
	Unidentifiable int
}

// FilterNew оставляет статьи, которых ещё нет в журнале, сохраняя порядок входа.
// Идентификатор каждой пропущенной статьи сразу заносится в ledger, поэтому дубли внутри
// одной пачки тоже отсекаются. Статьи без ссылки пропускаются и в журнал не попадают.
func FilterNew(articles []news.Article, ledger *news.Ledger) ([]news.Article, Stats) {
	return filterNew(articles, ledger, nil)
}

// filterNew - один проход по статьям; onSkip вызывается для каждой статьи без ссылки.
func filterNew(articles []news.Article, ledger *news.Ledger, onSkip func(news.Article)) ([]news.Article, Stats) {
	stats := Stats{Input: len(articles)}
	fresh := make([]news.Article, 0, len(articles))

	for _, article := range articles {
		id, err := news.ComputeIdentity(article)
		if err != nil {
			stats.Unidentifiable++
			if onSkip != nil {
				onSkip(article)
			}
			continue
		}
		if !ledger.Add(id) {
			stats.Seen++
			continue
		}
		fresh = append(fresh, article)
	}

	stats.Fresh = len(fresh)
	return fresh, stats
}

// Filter - обёртка над FilterNew с логированием, которую использует пайплайн.
type Filter struct {
	logger *slog.Logger
}

// New создаёт экземпляр фильтра.
func New(log *slog.Logger) *Filter {
	return &Filter{logger: logger.OrDefault(log)}
}

// Apply реализует app.Filter.
func (f *Filter) Apply(ctx context.Context, articles []news.Article, ledger *news.Ledger) ([]news.Article, error) {
	if ledger == nil {
		return nil, errors.New("filter: nil ledger")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fresh, stats := filterNew(articles, ledger, func(article news.Article) {
		f.logger.Warn("article skipped: no url", "title", article.Title, "source", article.Source)
	})
	f.logger.Info("articles filtered",
		"input", stats.Input,
		"fresh", stats.Fresh,
		"seen", stats.Seen,
		"unidentifiable", stats.Unidentifiable,
		"ledger_size", ledger.Count(),
	)
	return fresh, nil
}
