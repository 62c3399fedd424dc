package keyboard

import (
	"net/url"

	"github.com/go-telegram/bot/models"
)

// GoogleCalendarURL ссылка на подписку в Google Calendar
func GoogleCalendarURL(calendarID string) string {
	return "https://calendar.google.com/calendar/render?cid=" + url.QueryEscape(calendarID)
}

// ICalURL публичная ссылка на календарь в формате iCal
func ICalURL(calendarID string) string {
	return "https://calendar.google.com/calendar/ical/" + url.PathEscape(calendarID) + "/public/basic.ics"
}

// Calendar клавиатура со ссылками на календарь
func Calendar(calendarID string) *models.InlineKeyboardMarkup {
	return NewBuilder().
		Row(
			URLButton("Google Calendar", GoogleCalendarURL(calendarID)),
			URLButton("Apple iCalendar", ICalURL(calendarID)),
		).
		Build()
}
