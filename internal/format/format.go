// Package format приводит занятия из расписания и события календаря
// к единому виду с ключом идентичности и отпечатком содержимого.
package format

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"golang.org/x/text/cases"
)

const (
	controlEventMark = "📝 "
	reserveNotice    = "Это расписание резервного копирования на время возникновения трудностей с доступом к edu.donstu.ru. " +
		"Пожалуйста, проверьте актуальное расписание на сайте университета. Извините за предоставленные неудобства."
)

var (
	urlPattern  = regexp.MustCompile(`(?i)(?:https?://)?[-a-z0-9@:%._\+~#=]{1,256}\.[a-z0-9()]{1,6}\b(?:[-a-z0-9()@:%_\+.~#?&/=]*)?`)
	abbrPattern = regexp.MustCompile(`^(.{2,}?)[aeiouаеёиоуыэюя]`)
)

// Entry занятие в том виде, в каком его отдаёт upstream. Любое поле может отсутствовать.
type Entry struct {
	Name  string    `json:"name"`
	Color string    `json:"color"`
	Start string    `json:"start"`
	End   string    `json:"end"`
	Info  EntryInfo `json:"info"`
}

// EntryInfo подробности занятия
type EntryInfo struct {
	ModuleName     string    `json:"moduleName"`
	Theme          string    `json:"theme"`
	Aud            string    `json:"aud"`
	Link           string    `json:"link"`
	GroupName      string    `json:"groupName"`
	Type           string    `json:"type"`
	IsControlEvent bool      `json:"isControlEvent"`
	Teachers       []Teacher `json:"teachers"`
}

// Teacher преподаватель занятия
type Teacher struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// ReserveEntry занятие из резервного источника
type ReserveEntry struct {
	Start      string `json:"датаНачала"`
	End        string `json:"датаОкончания"`
	Discipline string `json:"дисциплина"`
	Room       string `json:"аудитория"`
	Theme      string `json:"тема"`
	Group      string `json:"группа"`
	Link       string `json:"ссылка"`
	Teacher    string `json:"преподаватель"`
}

// LessonType запись справочника типов занятий
type LessonType struct {
	Label        string `json:"label"`
	Abbreviation string `json:"abbreviation"`
}

// Formatter нормализует занятия в заданном часовом поясе
type Formatter struct {
	loc     *time.Location
	catalog []LessonType
}

// NewFormatter создаёт форматтер. catalog может быть пустым.
func NewFormatter(loc *time.Location, catalog []LessonType) *Formatter {
	return &Formatter{loc: loc, catalog: catalog}
}

// Normalize превращает занятие upstream в нормализованное событие
func (f *Formatter) Normalize(e Entry) (model.Event, error) {
	start, err := parseTime(e.Start, f.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := parseTime(e.End, f.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse end: %w", err)
	}

	title := f.title(e)
	location := strings.TrimSpace(e.Info.Aud)

	var fragments []string
	if e.Info.ModuleName != "" {
		fragments = append(fragments, e.Info.ModuleName)
	}
	if e.Info.Theme != "" {
		fragments = append(fragments, e.Info.Theme+"\n")
	}
	if e.Info.GroupName != "" {
		fragments = append(fragments, "Группа: "+e.Info.GroupName)
	}
	if links := extractLinks(e.Info.Link); links != "" {
		fragments = append(fragments, "Ссылки: "+links)
	}
	if len(e.Info.Teachers) > 0 {
		names := make([]string, 0, len(e.Info.Teachers))
		for _, t := range e.Info.Teachers {
			name := t.FullName
			if t.Email != "" {
				name += " (" + t.Email + ")"
			}
			names = append(names, name)
		}
		fragments = append(fragments, teacherLabel(len(names))+": "+strings.Join(names, ", "))
	}

	return f.build(start, end, title, NearestColor(e.Color), location, strings.Join(fragments, "\n")), nil
}

// NormalizeReserve превращает занятие из резервного источника в событие
// с фиксированным цветом и пометкой о резервной копии
func (f *Formatter) NormalizeReserve(r ReserveEntry) (model.Event, error) {
	start, err := parseTime(r.Start, f.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse start: %w", err)
	}
	end, err := parseTime(r.End, f.loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("parse end: %w", err)
	}

	var fragments []string
	if r.Theme != "" {
		fragments = append(fragments, r.Theme+"\n")
	}
	if r.Group != "" {
		fragments = append(fragments, "Группа: "+r.Group)
	}
	if links := extractLinks(r.Link); links != "" {
		fragments = append(fragments, "Ссылки: "+links)
	}
	if r.Teacher != "" {
		count := len(strings.Split(r.Teacher, ","))
		fragments = append(fragments, teacherLabel(count)+": "+r.Teacher)
	}
	fragments = append(fragments, "\n"+reserveNotice)

	title := strings.TrimSpace(r.Discipline)
	location := strings.TrimSpace(r.Room)

	return f.build(start, end, title, ReserveColorID, location, strings.Join(fragments, "\n")), nil
}

func (f *Formatter) build(start, end time.Time, title, colorID, location, description string) model.Event {
	description = strings.TrimSpace(description)
	return model.Event{
		IdentityKey: IdentityKey(start, end, title),
		Fingerprint: Fingerprint(title, location, description, colorID),
		Start:       start,
		End:         end,
		TimeZone:    f.loc.String(),
		Title:       title,
		ColorID:     colorID,
		Location:    location,
		Description: description,
	}
}

// title добавляет к названию сокращение типа занятия и метку контрольного мероприятия
func (f *Formatter) title(e Entry) string {
	title := strings.TrimSpace(e.Name)

	if e.Info.Type != "" {
		abbr := capitalize(f.abbreviation(e.Info.Type))
		if abbr != "" && !startsWithAbbreviation(title, abbr) {
			title = abbr + " " + title
		}
	}

	if e.Info.IsControlEvent {
		title = controlEventMark + title
	}
	return title
}

// abbreviation ищет сокращение в справочнике, иначе выводит его из названия типа
func (f *Formatter) abbreviation(lessonType string) string {
	for _, t := range f.catalog {
		if t.Label == lessonType {
			return t.Abbreviation
		}
	}

	if m := abbrPattern.FindStringSubmatch(lessonType); m != nil {
		return m[1]
	}
	return lessonType
}

// FromCalendarEvent строит нормализованное событие по событию календаря
func FromCalendarEvent(ce model.CalendarEvent) model.Event {
	return model.Event{
		ID:          ce.ID,
		IdentityKey: IdentityKey(ce.Start, ce.End, ce.Summary),
		Fingerprint: Fingerprint(ce.Summary, ce.Location, ce.Description, ce.ColorID),
		Start:       ce.Start,
		End:         ce.End,
		TimeZone:    ce.TimeZone,
		Title:       ce.Summary,
		ColorID:     ce.ColorID,
		Location:    ce.Location,
		Description: ce.Description,
	}
}

func teacherLabel(count int) string {
	if count == 1 {
		return "Преподаватель"
	}
	return "Преподаватели"
}

func extractLinks(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.Join(urlPattern.FindAllString(raw, -1), ", ")
}

func startsWithAbbreviation(title, abbr string) bool {
	words := strings.Fields(title)
	if len(words) == 0 {
		return false
	}
	return foldWord(words[0]) == foldWord(abbr)
}

// foldWord убирает пунктуацию и приводит регистр
func foldWord(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return cases.Fold().String(stripped)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// parseTime понимает RFC3339, а время без смещения считает местным временем loc
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown time format %q", s)
}
