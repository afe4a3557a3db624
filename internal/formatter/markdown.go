package formatter

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/maine/news_digest/internal/htmltext"
	"github.com/maine/news_digest/internal/news"
)

func buildMarkdown(groups []SourceGroup, total int, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# 📰 뉴스 요약\n\n")
	sb.WriteString(fmt.Sprintf("**%s** · 총 %d건 · %d개 소스\n",
		now.Format("2006년 01월 02일 15:04"), total, len(groups)))

	for _, group := range groups {
		info := infoFor(group.Source)
		sb.WriteString(fmt.Sprintf("\n## %s %s (%d건)\n", info.icon, escapeMarkdown(info.displayName), len(group.Entries)))

		for _, entry := range group.Entries {
			sb.WriteString("\n")
			writeEntry(&sb, entry)
		}
	}

	sb.WriteString(fmt.Sprintf("\n---\n\n_%s 발송_\n", now.Format(news.TimestampLayout)))
	return sb.String()
}

func writeEntry(sb *strings.Builder, entry news.DigestEntry) {
	title := escapeMarkdown(cleanTitle(entry.Article))
	sb.WriteString(fmt.Sprintf("### [%s](%s)\n\n", title, linkDestination(entry.Article.URL)))

	content := escapeMarkdown(cleanContent(entry.Article.Content))
	if entry.Summary != "" {
		sb.WriteString(fmt.Sprintf("> **AI 요약:** %s\n\n", escapeMarkdown(entry.Summary)))
		if content != "" {
			sb.WriteString(fmt.Sprintf("원문: %s\n", content))
		}
		return
	}
	if content != "" {
		sb.WriteString(content + "\n")
	}
}

func cleanTitle(a news.Article) string {
	title := htmltext.Truncate(htmltext.Clean(a.Title), MaxContentLength)
	if title == "" {
		return "(제목 없음)"
	}
	return title
}

func cleanContent(content string) string {
	return htmltext.Truncate(htmltext.Clean(content), MaxContentLength)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"|", `\|`,
)

// escapeMarkdown экранирует текст так, чтобы он не ломал разметку.
// Текст уже однострочный (Clean схлопывает пробелы), поэтому блочные конструкции
// возможны только в начале строки.
func escapeMarkdown(s string) string {
	s = markdownEscaper.Replace(s)
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '-', '+', '=':
		return `\` + s
	}
	if i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }); i > 0 && (s[i] == '.' || s[i] == ')') {
		return s[:i] + `\` + s[i:]
	}
	return s
}

var destinationEscaper = strings.NewReplacer(
	" ", "%20",
	"(", "%28",
	")", "%29",
	"<", "%3C",
	">", "%3E",
)

func linkDestination(url string) string {
	return destinationEscaper.Replace(strings.TrimSpace(url))
}

const htmlEnvelope = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background:#f4f5f7;">
<div style="max-width:680px;margin:0 auto;padding:24px;font-family:-apple-system,'Apple SD Gothic Neo','Malgun Gothic',sans-serif;font-size:15px;line-height:1.6;color:#222;background:#fff;">
%s
</div>
</body>
</html>
`

func wrapHTML(subject, body string) string {
	return fmt.Sprintf(htmlEnvelope, html.EscapeString(subject), body)
}
