package model

import "time"

// Event нормализованное занятие. Одинаковый IdentityKey означает один и тот же слот,
// одинаковый Fingerprint - что видимые поля не менялись.
type Event struct {
	ID          string // ID события в календаре, пусто для событий из расписания
	IdentityKey string
	Fingerprint string

	Start    time.Time
	End      time.Time
	TimeZone string

	Title       string
	ColorID     string
	Location    string
	Description string
}

// CalendarEvent событие, хранящееся в календаре
type CalendarEvent struct {
	ID          string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Summary     string
	ColorID     string
	Location    string
	Description string
}

// Window интервал синхронизации
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains проверяет, попадает ли момент в интервал (границы включительно)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TwoMonthWindow возвращает окно с начала текущего месяца до конца следующего
// в указанном часовом поясе
func TwoMonthWindow(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 2, 0).Add(-time.Millisecond)
	return Window{Start: start, End: end}
}
