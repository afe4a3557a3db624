package news

import "time"

// Article описывает новость сразу после получения от провайдера.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	Language    string    `json:"language"`
	Keyword     string    `json:"keyword,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// NeedsSummary сообщает, нужно ли переводить/сокращать статью для читателя с языком native.
func (a Article) NeedsSummary(native string) bool {
	return a.Language != "" && a.Language != native
}

// FetchResult - итог одного вызова провайдера для одного ключевого слова.
// Err != nil означает неудачу; Articles в этом случае пуст.
type FetchResult struct {
	Provider string
	Keyword  string
	Articles []Article
	Err      error
	Duration time.Duration
}

// OK сообщает, завершился ли вызов успешно.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// DigestEntry - итоговое представление новости перед рендерингом.
type DigestEntry struct {
	Article Article
	// Summary заполняется только для статей на неродном языке.
	Summary string
	// SummaryFailed выставляется, когда суммаризатор вернул маркер ошибки.
	SummaryFailed bool
}

// LedgerStats - краткая сводка по журналу за день.
type LedgerStats struct {
	Date        string
	Count       int
	LastUpdated string
}
