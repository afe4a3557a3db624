package news

import (
	"sort"
	"time"
)

const (
	// DateLayout - формат даты журнала и суффикса имени файла.
	DateLayout = "2006-01-02"
	// TimestampLayout - формат поля last_updated.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Ledger хранит идентификаторы статей, уже отправленных за один календарный день.
// Внутри дня множество только растёт.
type Ledger struct {
	Date        time.Time
	LastUpdated time.Time
	identities  map[Identity]struct{}
}

// NewLedger создаёт пустой журнал на день, в который попадает момент day.
func NewLedger(day time.Time) *Ledger {
	return &Ledger{
		Date:       StartOfDay(day),
		identities: make(map[Identity]struct{}),
	}
}

// Contains проверяет, отправлялась ли статья сегодня.
func (l *Ledger) Contains(id Identity) bool {
	_, ok := l.identities[id]
	return ok
}

// Add добавляет идентификатор. Возвращает false, если он уже был в журнале.
func (l *Ledger) Add(id Identity) bool {
	if _, ok := l.identities[id]; ok {
		return false
	}
	l.identities[id] = struct{}{}
	return true
}

// Count возвращает количество записей.
func (l *Ledger) Count() int {
	return len(l.identities)
}

// Identities возвращает отсортированный список идентификаторов.
func (l *Ledger) Identities() []Identity {
	ids := make([]Identity, 0, len(l.identities))
	for id := range l.identities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Day возвращает дату журнала в формате YYYY-MM-DD.
func (l *Ledger) Day() string {
	return l.Date.Format(DateLayout)
}

// StartOfDay обрезает момент до полуночи в его же часовом поясе.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween возвращает число календарных дней от from до to (to - from).
// Переходы на летнее время не влияют на результат.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
