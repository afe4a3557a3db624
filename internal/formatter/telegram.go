package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maine/news_digest/internal/htmltext"
)

const (
	// telegramMaxMessageLength - максимальная длина сообщения в Telegram (4096)
	telegramMaxMessageLength = 4096
	// headerTemplate - шаблон для нумерации сообщений
	headerTemplate = "📰 뉴스 요약 (%d/%d)\n\n"
	// headerReserve - место под заголовок нумерации
	headerReserve = 40
	// blockSeparator - разделитель между блоками источников
	blockSeparator = "\n\n"
	// telegramSnippetLength - длина текста статьи в сообщении
	telegramSnippetLength = 200
	ellipsis              = "..."
)

var telegramEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// escapeTelegram экранирует спецсимволы Markdown (legacy) Telegram.
func escapeTelegram(s string) string {
	return telegramEscaper.Replace(s)
}

// telegramBlocks форматирует каждый источник отдельным блоком.
func telegramBlocks(groups []SourceGroup) []string {
	blocks := make([]string, 0, len(groups))
	for _, group := range groups {
		info := infoFor(group.Source)

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("*%s %s* (%d건)\n", info.icon, escapeTelegram(info.displayName), len(group.Entries)))

		for j, entry := range group.Entries {
			text := entry.Summary
			if text == "" {
				text = htmltext.Clean(entry.Article.Content)
			}
			text = htmltext.Truncate(text, telegramSnippetLength)

			// Формат: [Заголовок](URL) - текст
			line := fmt.Sprintf("[%s](%s)", escapeTelegram(cleanTitle(entry.Article)), linkDestination(entry.Article.URL))
			if text != "" {
				line += " — " + escapeTelegram(text)
			}
			sb.WriteString(line)
			if j < len(group.Entries)-1 {
				sb.WriteString("\n")
			}
		}

		blocks = append(blocks, sb.String())
	}
	return blocks
}

// splitIntoChunks разбивает блоки источников на сообщения, по возможности не разрывая блоки.
// Блок, который не помещается в одно сообщение, режется построчно; слишком длинная строка
// обрезается. Сообщения сверх maxMessages отбрасываются.
func splitIntoChunks(blocks []string, maxMessages int) []string {
	if len(blocks) == 0 {
		return nil
	}

	limit := telegramMaxMessageLength - headerReserve
	var messages []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, strings.TrimSuffix(current.String(), "\n"))
			current.Reset()
		}
	}
	add := func(piece, sep string) {
		if current.Len() > 0 && current.Len()+len(sep)+len(piece) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, block := range blocks {
		if len(block) <= limit {
			add(block, blockSeparator)
			continue
		}

		// Крайний случай: блок не помещается целиком, разрываем построчно
		sep := blockSeparator
		for _, line := range strings.Split(block, "\n") {
			add(truncateBytes(line, limit), sep)
			sep = "\n"
		}
	}
	flush()

	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[:maxMessages]
	}

	// Добавляем нумерацию ко всем сообщениям, если их больше одного
	if len(messages) > 1 {
		total := len(messages)
		for i, msg := range messages {
			messages[i] = fmt.Sprintf(headerTemplate, i+1, total) + msg
		}
	}
	return messages
}

// truncateBytes обрезает s до max байт по границе руны.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
