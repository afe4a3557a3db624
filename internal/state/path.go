package state

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/maine/news_digest/internal/news"
)

// ResolvePath строит путь к журналу за день: <stem>_<YYYY-MM-DD><ext> рядом с baseName.
// Для одного и того же дня результат всегда одинаков.
func ResolvePath(baseName string, day time.Time) string {
	stem, ext := splitBase(baseName)
	return stem + "_" + day.Format(news.DateLayout) + ext
}

// parseLedgerName извлекает дату из имени файла журнала.
// ok == false, если имя не соответствует шаблону или дата не парсится.
func parseLedgerName(baseName, fileName string, loc *time.Location) (time.Time, bool) {
	if !matchesLedgerPattern(baseName, fileName) {
		return time.Time{}, false
	}
	stem, ext := splitBase(baseName)
	prefix := filepath.Base(stem) + "_"
	datePart := strings.TrimSuffix(strings.TrimPrefix(fileName, prefix), ext)
	if len(datePart) != len(news.DateLayout) {
		return time.Time{}, false
	}

	day, err := time.ParseInLocation(news.DateLayout, datePart, loc)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// matchesLedgerPattern сообщает, что имя имеет префикс и расширение журнала (дата не проверяется).
func matchesLedgerPattern(baseName, fileName string) bool {
	stem, ext := splitBase(baseName)
	prefix := filepath.Base(stem) + "_"
	return strings.HasPrefix(fileName, prefix) && strings.HasSuffix(fileName, ext) &&
		len(fileName) > len(prefix)+len(ext)
}

func splitBase(baseName string) (stem, ext string) {
	ext = filepath.Ext(baseName)
	return strings.TrimSuffix(baseName, ext), ext
}
