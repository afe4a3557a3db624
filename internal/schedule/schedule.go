package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maine/news_digest/internal/logger"
)

// Job - работа, запускаемая по расписанию.
type Job func(ctx context.Context)

// Clock - время суток в формате HH:MM.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// cronExpr возвращает cron-выражение ежедневного запуска.
func (c Clock) cronExpr() string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

// ParseTimes разбирает список "HH:MM", удаляя пробелы и повторы. Порядок сохраняется.
func ParseTimes(values []string) ([]Clock, error) {
	seen := make(map[Clock]struct{}, len(values))
	clocks := make([]Clock, 0, len(values))

	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		c, err := parseClock(value)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		clocks = append(clocks, c)
	}

	if len(clocks) == 0 {
		return nil, fmt.Errorf("no batch times configured")
	}
	return clocks, nil
}

func parseClock(value string) (Clock, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return Clock{}, fmt.Errorf("invalid batch time %q: want HH:MM", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in batch time %q", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in batch time %q", value)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// Scheduler запускает job в заданное время каждый день по местному времени.
// Все записи расписания делят один guard: пока идёт один запуск, любой другой пропускается.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	batch   cron.Job
	ctx     context.Context
	times   []Clock
	entries []cron.EntryID
	logger  *slog.Logger
}

// New регистрирует ежедневные запуски и часовую запись статуса.
func New(times []Clock, job Job, loc *time.Location, log *slog.Logger) (*Scheduler, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no batch times configured")
	}
	if job == nil {
		return nil, fmt.Errorf("nil job")
	}
	if loc == nil {
		loc = time.Local
	}
	log = logger.OrDefault(log)
	cronLog := cronLogger{log: log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		job:    job,
		ctx:    context.Background(),
		times:  times,
		logger: log,
	}
	// Recover внутри guard: паника в job не должна оставить guard занятым.
	s.batch = cron.NewChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)).
		Then(cron.FuncJob(func() { s.job(s.ctx) }))
	return s, nil
}

// Run запускает планировщик и блокируется до отмены ctx, затем ждёт текущий запуск.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	for _, at := range s.times {
		id, err := s.cron.AddJob(at.cronExpr(), s.entryJob(at))
		if err != nil {
			return fmt.Errorf("schedule %s: %w", at, err)
		}
		s.entries = append(s.entries, id)
	}
	if _, err := s.cron.AddFunc("@hourly", s.logStatus); err != nil {
		return fmt.Errorf("schedule status: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "times", s.timesString())
	s.logStatus()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// entryJob - запись расписания для времени at; все записи запускают общий s.batch.
func (s *Scheduler) entryJob(at Clock) cron.Job {
	return cron.FuncJob(func() {
		s.logger.Info("batch triggered", "scheduled", at.String())
		s.batch.Run()
	})
}

// Next возвращает ближайший запланированный запуск дайджеста.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, id := range s.entries {
		at := s.cron.Entry(id).Next
		if at.IsZero() {
			continue
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next
}

func (s *Scheduler) logStatus() {
	next := s.Next()
	if next.IsZero() {
		s.logger.Info("scheduler status", "times", s.timesString())
		return
	}
	s.logger.Info("scheduler status", "next_run", next.Format("2006-01-02 15:04"), "in", time.Until(next).Round(time.Minute))
}

func (s *Scheduler) timesString() string {
	parts := make([]string, len(s.times))
	for i, t := range s.times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// cronLogger пересылает сообщения cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.log.Warn("batch skipped: previous batch still running")
		return
	}
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
