package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

const (
	// DefaultFetchTimeout - предел одного вызова провайдера.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultFetchCeiling - предел всего этапа сбора.
	DefaultFetchCeiling = 2 * time.Minute
	// DefaultParallelism - сколько вызовов провайдеров идут одновременно.
	DefaultParallelism = 4
)

// ErrNotConfigured возвращается, когда пайплайн запущен без обязательных зависимостей.
var ErrNotConfigured = errors.New("pipeline dependencies not configured")

// Clock определяет источник времени (удобно подменять в тестах).
type Clock func() time.Time

// Provider ищет статьи по одному ключевому слову.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, keyword string) ([]news.Article, error)
}

// Filter отсекает статьи, уже отправленные сегодня, и помечает новые в журнале.
type Filter interface {
	Apply(ctx context.Context, articles []news.Article, ledger *news.Ledger) ([]news.Article, error)
}

// Deliverer суммаризирует, рендерит и отправляет дайджест. true - все каналы успешны.
type Deliverer interface {
	Deliver(ctx context.Context, articles []news.Article) bool
}

// LedgerStore хранит журнал отправленных статей за день.
type LedgerStore interface {
	Load(ctx context.Context, day time.Time) (*news.Ledger, error)
	Save(ctx context.Context, ledger *news.Ledger) error
}

// PipelineDeps перечисляет зависимости пайплайна.
type PipelineDeps struct {
	Providers []Provider
	Keywords  []string
	Store     LedgerStore
	Filter    Filter
	Deliverer Deliverer
	Clock     Clock
	Logger    *slog.Logger

	// FetchTimeout ограничивает один вызов провайдера, FetchCeiling - весь сбор.
	FetchTimeout time.Duration
	FetchCeiling time.Duration
	Parallelism  int
}

// Pipeline выполняет один тик: журнал, сбор, фильтрация, доставка, сохранение.
type Pipeline struct {
	providers []Provider
	keywords  []string
	store     LedgerStore
	filter    Filter
	deliverer Deliverer
	clock     Clock
	logger    *slog.Logger

	fetchTimeout time.Duration
	fetchCeiling time.Duration
	parallelism  int
}

// NewPipeline создаёт новый экземпляр пайплайна.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := deps.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ceiling := deps.FetchCeiling
	if ceiling <= 0 {
		ceiling = DefaultFetchCeiling
	}
	parallelism := deps.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	return &Pipeline{
		providers:    deps.Providers,
		keywords:     deps.Keywords,
		store:        deps.Store,
		filter:       deps.Filter,
		deliverer:    deps.Deliverer,
		clock:        clock,
		logger:       logger.OrDefault(deps.Logger),
		fetchTimeout: timeout,
		fetchCeiling: ceiling,
		parallelism:  parallelism,
	}
}

// Run исполняет один тик. Журнал сохраняется даже при неудачной доставке;
// отмена контекста до фильтрации прерывает тик без сохранения.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if err := p.validateDeps(); err != nil {
		return Report{Stage: StageFailed}, err
	}

	start := p.clock()
	report := Report{
		TickID: uuid.NewString(),
		Day:    start.Format(news.DateLayout),
		Stage:  StageLoading,
	}
	log := p.logger.With("tick", report.TickID, "day", report.Day)

	ledger, err := p.store.Load(ctx, start)
	if err != nil || ledger == nil {
		log.Warn("ledger load failed, starting empty", "err", err)
		ledger = news.NewLedger(start)
	}
	log.Info("ledger loaded", "sent_today", ledger.Count())

	report.Stage = StageFetching
	report.Results = p.fetchAll(ctx, log)
	articles := collect(report.Results)
	report.Fetched = len(articles)
	log.Info("articles fetched", "total", report.Fetched, "calls", len(report.Results), "failed", countFailed(report.Results))

	if err := ctx.Err(); err != nil {
		report.Stage = StageFailed
		report.Duration = p.clock().Sub(start)
		return report, fmt.Errorf("tick abandoned: %w", err)
	}

	report.Stage = StageFiltering
	fresh, err := p.filter.Apply(ctx, articles, ledger)
	if err != nil {
		report.Stage = StageFailed
		report.Duration = p.clock().Sub(start)
		return report, fmt.Errorf("filter articles: %w", err)
	}
	report.Fresh = len(fresh)

	report.Stage = StageDelivering
	if len(fresh) == 0 {
		log.Info("no new articles, delivery skipped")
	} else {
		report.Delivered = p.deliverer.Deliver(ctx, fresh)
		if !report.Delivered {
			log.Error("delivery failed, articles stay marked as sent", "articles", len(fresh))
		}
	}

	report.Stage = StagePersisting
	if err := p.store.Save(context.WithoutCancel(ctx), ledger); err != nil {
		report.Stage = StageFailed
		report.Duration = p.clock().Sub(start)
		log.Error("ledger save failed", "err", err)
		return report, fmt.Errorf("save ledger: %w", err)
	}

	report.Stage = StageIdle
	report.Duration = p.clock().Sub(start)
	log.Info("tick completed", "fetched", report.Fetched, "fresh", report.Fresh, "delivered", report.Delivered, "sent_today", ledger.Count(), "duration", report.Duration)
	return report, nil
}

// fetchAll опрашивает каждого провайдера по каждому ключевому слову.
// Результаты лежат в порядке «ключевое слово, затем провайдер» независимо от порядка завершения.
func (p *Pipeline) fetchAll(ctx context.Context, log *slog.Logger) []news.FetchResult {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchCeiling)
	defer cancel()

	results := make([]news.FetchResult, len(p.keywords)*len(p.providers))

	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for ki, keyword := range p.keywords {
		for pi, provider := range p.providers {
			idx := ki*len(p.providers) + pi
			g.Go(func() error {
				results[idx] = p.fetchOne(fetchCtx, provider, keyword)
				if err := results[idx].Err; err != nil {
					log.Warn("provider fetch failed", "provider", provider.Name(), "keyword", keyword, "err", err)
				} else {
					log.Debug("provider fetched", "provider", provider.Name(), "keyword", keyword, "articles", len(results[idx].Articles))
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

type fetchOutcome struct {
	articles []news.Article
	err      error
}

// fetchOne вызывает провайдера с таймаутом. Провайдер, игнорирующий отмену,
// бросается по истечении таймаута; паника превращается в ошибку.
func (p *Pipeline) fetchOne(ctx context.Context, provider Provider, keyword string) (result news.FetchResult) {
	result = news.FetchResult{Provider: provider.Name(), Keyword: keyword}
	started := time.Now()
	defer func() { result.Duration = time.Since(started) }()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		articles, err := provider.Fetch(callCtx, keyword)
		done <- fetchOutcome{articles: articles, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			result.Err = out.err
			return result
		}
		result.Articles = out.articles
	case <-callCtx.Done():
		result.Err = fmt.Errorf("provider %s: %w", provider.Name(), callCtx.Err())
	}
	return result
}

func collect(results []news.FetchResult) []news.Article {
	var total int
	for _, r := range results {
		total += len(r.Articles)
	}
	articles := make([]news.Article, 0, total)
	for _, r := range results {
		if r.OK() {
			articles = append(articles, r.Articles...)
		}
	}
	return articles
}

func countFailed(results []news.FetchResult) int {
	var n int
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

func (p *Pipeline) validateDeps() error {
	switch {
	case len(p.providers) == 0,
		len(p.keywords) == 0,
		p.store == nil,
		p.filter == nil,
		p.deliverer == nil:
		return ErrNotConfigured
	default:
		return nil
	}
}
