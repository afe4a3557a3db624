package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maine/news_digest/internal/logger"
	"github.com/maine/news_digest/internal/news"
)

// SQLiteStore хранит журнал во встроенной базе SQLite: строка на пару (день, идентификатор).
// Альтернатива файлам по дням с тем же поведением Load/Save/Prune.
type SQLiteStore struct {
	db       *sql.DB
	keepDays int
	clock    func() time.Time
	logger   *slog.Logger
}

// OpenSQLite открывает (или создаёт) базу журнала по пути dbPath.
func OpenSQLite(dbPath string, keepDays int, clock func() time.Time, log *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	// Один писатель: так SQLite не ловит SQLITE_BUSY внутри процесса.
	db.SetMaxOpenConns(1)

	if keepDays < 1 {
		keepDays = DefaultKeepDays
	}
	if clock == nil {
		clock = time.Now
	}

	s := &SQLiteStore{db: db, keepDays: keepDays, clock: clock, logger: logger.OrDefault(log)}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_entries (
			day      TEXT NOT NULL,
			identity TEXT NOT NULL,
			PRIMARY KEY (day, identity)
		);
		CREATE TABLE IF NOT EXISTS ledger_days (
			day          TEXT PRIMARY KEY,
			last_updated TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing ledger schema: %w", err)
	}
	return nil
}

// Close закрывает базу.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load читает журнал за день, предварительно удаляя устаревшие дни.
func (s *SQLiteStore) Load(ctx context.Context, day time.Time) (*news.Ledger, error) {
	if _, err := s.pruneAt(ctx, day, s.keepDays); err != nil {
		s.logger.Warn("ledger prune failed", "err", err)
	}

	ledger := news.NewLedger(day)

	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM ledger_entries WHERE day = ?`, ledger.Day())
	if err != nil {
		return ledger, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return news.NewLedger(day), fmt.Errorf("scan ledger row: %w", err)
		}
		ledger.Add(news.Identity(id))
	}
	if err := rows.Err(); err != nil {
		return news.NewLedger(day), fmt.Errorf("iterate ledger rows: %w", err)
	}

	var lastUpdated string
	err = s.db.QueryRowContext(ctx, `SELECT last_updated FROM ledger_days WHERE day = ?`, ledger.Day()).Scan(&lastUpdated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		s.logger.Warn("ledger timestamp unreadable", "day", ledger.Day(), "err", err)
	default:
		if t, err := time.ParseInLocation(news.TimestampLayout, lastUpdated, day.Location()); err == nil {
			ledger.LastUpdated = t
		}
	}

	return ledger, nil
}

// Save дописывает идентификаторы дня одной транзакцией.
func (s *SQLiteStore) Save(ctx context.Context, ledger *news.Ledger) error {
	ledger.LastUpdated = s.clock()
	day := ledger.Day()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO ledger_entries (day, identity) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range ledger.Identities() {
		if _, err := stmt.ExecContext(ctx, day, string(id)); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_days (day, last_updated) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET last_updated = excluded.last_updated`,
		day, ledger.LastUpdated.Format(news.TimestampLayout))
	if err != nil {
		return fmt.Errorf("upsert ledger day: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Prune удаляет дни, для которых (сегодня - день) >= keepDays.
func (s *SQLiteStore) Prune(ctx context.Context, keepDays int) (int, error) {
	return s.pruneAt(ctx, s.clock(), keepDays)
}

// Stats возвращает сводку по журналу за день.
func (s *SQLiteStore) Stats(ctx context.Context, day time.Time) (news.LedgerStats, error) {
	stats := news.LedgerStats{Date: day.Format(news.DateLayout)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE day = ?`, stats.Date).Scan(&stats.Count); err != nil {
		return stats, fmt.Errorf("count ledger entries: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `SELECT last_updated FROM ledger_days WHERE day = ?`, stats.Date).Scan(&stats.LastUpdated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("read ledger timestamp: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) pruneAt(ctx context.Context, today time.Time, keepDays int) (int, error) {
	if keepDays < 1 {
		keepDays = 1
	}
	cutoff := news.StartOfDay(today).AddDate(0, 0, -keepDays).Format(news.DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer tx.Rollback()

	var removed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT day) FROM ledger_entries WHERE day <= ?`, cutoff).Scan(&removed); err != nil {
		return 0, fmt.Errorf("count prunable days: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE day <= ?`, cutoff); err != nil {
		return 0, fmt.Errorf("prune ledger entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_days WHERE day <= ?`, cutoff); err != nil {
		return 0, fmt.Errorf("prune ledger days: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune tx: %w", err)
	}

	if removed > 0 {
		s.logger.Info("old ledger days removed", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}
