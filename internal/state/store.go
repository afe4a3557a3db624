package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

// DefaultKeepDays - сколько дней хранятся файлы журнала (включая сегодняшний).
const DefaultKeepDays = 1

// ledgerFile - формат файла журнала на диске.
type ledgerFile struct {
	Date        string          `json:"date"`
	Articles    []news.Identity `json:"articles"`
	Count       int             `json:"count"`
	LastUpdated string          `json:"last_updated"`

	// legacy - файл в старом формате без даты (голый массив).
	legacy bool
}

// FileStore хранит журнал отправленных статей в JSON-файле на каждый день.
type FileStore struct {
	baseName string
	keepDays int
	clock    func() time.Time
	logger   *slog.Logger
}

// NewFileStore создаёт файловый стор. baseName задаёт каталог, префикс и расширение
// файлов: "data/sent_articles.json" -> "data/sent_articles_2026-10-14.json".
func NewFileStore(baseName string, keepDays int, clock func() time.Time, log *slog.Logger) *FileStore {
	if keepDays < 1 {
		keepDays = DefaultKeepDays
	}
	if clock == nil {
		clock = time.Now
	}
	return &FileStore{
		baseName: baseName,
		keepDays: keepDays,
		clock:    clock,
		logger:   logger.OrDefault(log),
	}
}

// Path возвращает путь к файлу журнала за день.
func (s *FileStore) Path(day time.Time) string {
	return ResolvePath(s.baseName, day)
}

// Load читает журнал за день. Попутно удаляет устаревшие файлы.
// Отсутствующий, повреждённый или чужой по дате файл даёт пустой журнал; ошибка не возвращается никогда.
func (s *FileStore) Load(ctx context.Context, day time.Time) (*news.Ledger, error) {
	if _, err := s.pruneAt(day, s.keepDays); err != nil {
		s.logger.Warn("ledger prune failed", "err", err)
	}

	path := s.Path(day)
	ledger := news.NewLedger(day)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("ledger unreadable, starting empty", "path", path, "err", err)
		}
		return ledger, nil
	}

	file, err := decodeLedger(data)
	if err != nil {
		s.logger.Warn("ledger unparseable, starting empty", "path", path, "err", err)
		return ledger, nil
	}

	// Старый формат (голый массив): день берётся из имени файла.
	if file.legacy {
		file.Date = ledger.Day()
	}
	if file.Date != ledger.Day() {
		s.logger.Info("stale ledger discarded", "path", path, "ledger_date", file.Date, "today", ledger.Day())
		return ledger, nil
	}

	for _, id := range file.Articles {
		if id != "" {
			ledger.Add(id)
		}
	}
	if t, err := time.ParseInLocation(news.TimestampLayout, file.LastUpdated, day.Location()); err == nil {
		ledger.LastUpdated = t
	}

	s.logger.Debug("ledger loaded", "path", path, "count", ledger.Count())
	return ledger, nil
}

// Save записывает журнал атомарно (через временный файл в том же каталоге).
func (s *FileStore) Save(ctx context.Context, ledger *news.Ledger) error {
	ledger.LastUpdated = s.clock()

	ids := ledger.Identities()
	data, err := json.MarshalIndent(ledgerFile{
		Date:        ledger.Day(),
		Articles:    ids,
		Count:       len(ids),
		LastUpdated: ledger.LastUpdated.Format(news.TimestampLayout),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	path := s.Path(ledger.Date)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	s.logger.Debug("ledger saved", "path", path, "count", len(ids))
	return nil
}

// Prune удаляет файлы журнала, которым (сегодня - дата) >= keepDays дней.
// Ошибки удаления отдельных файлов логируются и пропускаются.
func (s *FileStore) Prune(ctx context.Context, keepDays int) (int, error) {
	return s.pruneAt(s.clock(), keepDays)
}

// Stats возвращает сводку по журналу за день, не удаляя старые файлы.
func (s *FileStore) Stats(ctx context.Context, day time.Time) (news.LedgerStats, error) {
	stats := news.LedgerStats{Date: day.Format(news.DateLayout)}

	data, err := os.ReadFile(s.Path(day))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("read ledger: %w", err)
	}

	file, err := decodeLedger(data)
	if err != nil {
		return stats, nil
	}
	if !file.legacy && file.Date != stats.Date {
		return stats, nil
	}
	stats.Count = len(file.Articles)
	stats.LastUpdated = file.LastUpdated
	return stats, nil
}

func (s *FileStore) pruneAt(today time.Time, keepDays int) (int, error) {
	if keepDays < 1 {
		keepDays = 1
	}

	dir := filepath.Dir(s.baseName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan ledger directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		fileDay, ok := parseLedgerName(s.baseName, name, today.Location())
		if !ok {
			if matchesLedgerPattern(s.baseName, name) {
				s.logger.Debug("ledger prune skipped: no valid date in name", "file", name)
			}
			continue
		}

		age := news.DaysBetween(fileDay, today)
		if age < keepDays {
			s.logger.Debug("ledger kept", "file", name, "age_days", age)
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("ledger prune skipped", "path", path, "err", err)
			continue
		}
		removed++
		s.logger.Info("old ledger removed", "path", path, "age_days", age)
	}

	return removed, nil
}

// decodeLedger понимает оба формата: объект с датой и старый голый массив идентификаторов.
func decodeLedger(data []byte) (ledgerFile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ledgerFile{}, errors.New("empty ledger file")
	}

	if trimmed[0] == '[' {
		var ids []news.Identity
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return ledgerFile{}, fmt.Errorf("unmarshal legacy ledger: %w", err)
		}
		return ledgerFile{Articles: ids, Count: len(ids), legacy: true}, nil
	}

	var file ledgerFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return ledgerFile{}, fmt.Errorf("unmarshal ledger: %w", err)
	}
	return file, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}

	// Переименование атомарно на большинстве файловых систем.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp ledger file: %w", err)
	}
	return nil
}
