package formatter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/maine/news_digest/internal/news"
)

const (
	// MaxContentLength - сколько символов текста статьи попадает в письмо.
	MaxContentLength = 500
	// DefaultMaxMessages - предел сообщений Telegram на один дайджест.
	DefaultMaxMessages = 10

	subjectTemplate = "📰 [뉴스 요약] %s - %d건"
)

// Document - отрендеренный дайджест для всех каналов.
type Document struct {
	Subject  string
	Markdown string
	HTML     string
	// Chunks - сообщения Telegram, каждое не длиннее 4096 байт.
	Chunks []string
}

// SourceGroup - статьи одного источника в порядке появления.
type SourceGroup struct {
	Source  string
	Entries []news.DigestEntry
}

// Renderer строит дайджест из готовых записей.
type Renderer struct {
	clock       func() time.Time
	maxMessages int
	md          goldmark.Markdown
}

// NewRenderer создаёт рендерер. maxMessages <= 0 означает DefaultMaxMessages.
func NewRenderer(clock func() time.Time, maxMessages int) *Renderer {
	if clock == nil {
		clock = time.Now
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Renderer{
		clock:       clock,
		maxMessages: maxMessages,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Render строит тему, Markdown, HTML и сообщения Telegram.
func (r *Renderer) Render(entries []news.DigestEntry) (Document, error) {
	now := r.clock()
	groups := GroupBySource(entries)

	doc := Document{
		Subject:  fmt.Sprintf(subjectTemplate, now.Format("2006-01-02 15:04"), len(entries)),
		Markdown: buildMarkdown(groups, len(entries), now),
	}

	var body bytes.Buffer
	if err := r.md.Convert([]byte(doc.Markdown), &body); err != nil {
		return Document{}, fmt.Errorf("convert markdown: %w", err)
	}
	doc.HTML = wrapHTML(doc.Subject, body.String())
	doc.Chunks = splitIntoChunks(telegramBlocks(groups), r.maxMessages)

	return doc, nil
}

// GroupBySource группирует записи по источнику; порядок групп - по первому появлению.
func GroupBySource(entries []news.DigestEntry) []SourceGroup {
	index := make(map[string]int)
	var groups []SourceGroup
	for _, entry := range entries {
		source := entry.Article.Source
		i, ok := index[source]
		if !ok {
			i = len(groups)
			index[source] = i
			groups = append(groups, SourceGroup{Source: source})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

type sourceInfo struct {
	icon        string
	displayName string
}

var sourceInfos = map[string]sourceInfo{
	"Naver News":  {icon: "🟢", displayName: "네이버 뉴스"},
	"Google News": {icon: "🔍", displayName: "구글 뉴스"},
	"BBC":         {icon: "🌍", displayName: "BBC 뉴스"},
}

func infoFor(source string) sourceInfo {
	if info, ok := sourceInfos[source]; ok {
		return info
	}
	if source == "" {
		source = "기타"
	}
	return sourceInfo{icon: "📰", displayName: source}
}
