// Package calendar обёртка над Google Calendar API
package calendar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	maxResults          = 400
	calendarDescription = "Сгенерировано и обновляется @t_schedule_bot"
)

// Client CRUD по событиям и календарям
type Client struct {
	service *gcal.Service
	loc     *time.Location
	logger  *zap.Logger
}

// New создаёт клиент по JSON-ключу сервисного аккаунта
func New(ctx context.Context, credentialsFile string, loc *time.Location, logger *zap.Logger) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, gcal.CalendarScope, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	return NewWithOptions(ctx, loc, logger, option.WithCredentials(creds))
}

// NewWithOptions создаёт клиент с произвольными опциями API
func NewWithOptions(ctx context.Context, loc *time.Location, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &Client{service: service, loc: loc, logger: logger}, nil
}

// ListEvents возвращает события календаря в интервале
func (c *Client) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]model.CalendarEvent, error) {
	var result []model.CalendarEvent

	call := c.service.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		MaxResults(maxResults)

	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			result = append(result, fromGoogle(item, c.logger))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	return result, nil
}

// CreateEvent создаёт событие и возвращает его ID
func (c *Client) CreateEvent(ctx context.Context, calendarID string, ev model.Event) (string, error) {
	created, err := c.service.Events.Insert(calendarID, toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("create event: empty event id")
	}
	return created.Id, nil
}

// UpdateEvent перезаписывает событие ev.ID
func (c *Client) UpdateEvent(ctx context.Context, calendarID string, ev model.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("update event: empty event id")
	}

	if _, err := c.service.Events.Update(calendarID, ev.ID, toGoogle(ev)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// DeleteEvent удаляет событие
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.service.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// CreateCalendar создаёт публичный календарь и возвращает его ID
func (c *Client) CreateCalendar(ctx context.Context, summary string) (string, error) {
	created, err := c.service.Calendars.Insert(&gcal.Calendar{
		Summary:     summary,
		TimeZone:    c.loc.String(),
		Description: calendarDescription,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create calendar: %w", err)
	}

	// Без публичного доступа календарём нельзя поделиться, поэтому это ошибка
	if err := c.insertRule(ctx, created.Id, &gcal.AclRule{
		Role:  "reader",
		Scope: &gcal.AclRuleScope{Type: "default"},
	}); err != nil {
		return "", fmt.Errorf("open calendar %s: %w", created.Id, err)
	}

	c.logger.Info("Calendar created", zap.String("calendar_id", created.Id))
	return created.Id, nil
}

// GrantWriter даёт пользователю Google права на редактирование календаря
func (c *Client) GrantWriter(ctx context.Context, calendarID, email string) error {
	return c.insertRule(ctx, calendarID, &gcal.AclRule{
		Role:  "writer",
		Scope: &gcal.AclRuleScope{Type: "user", Value: email},
	})
}

func (c *Client) insertRule(ctx context.Context, calendarID string, rule *gcal.AclRule) error {
	created, err := c.service.Acl.Insert(calendarID, rule).SendNotifications(false).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("insert acl rule: %w", err)
	}
	if created.Id == "" {
		return fmt.Errorf("insert acl rule: empty rule id")
	}
	return nil
}

func toGoogle(ev model.Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		ColorId:     ev.ColorID,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
	}
}

// fromGoogle переводит событие API в модель. События на весь день и события
// с нечитаемым временем остаются с нулевым временем и будут удалены сверкой.
func fromGoogle(item *gcal.Event, logger *zap.Logger) model.CalendarEvent {
	ev := model.CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		ColorID:     item.ColorId,
		Location:    item.Location,
		Description: item.Description,
	}

	var err error
	if ev.Start, err = parseEventTime(item.Start); err != nil {
		logger.Debug("Event has no usable start time", zap.String("event_id", item.Id), zap.Error(err))
	}
	if ev.End, err = parseEventTime(item.End); err != nil {
		logger.Debug("Event has no usable end time", zap.String("event_id", item.Id), zap.Error(err))
	}
	if item.Start != nil {
		ev.TimeZone = item.Start.TimeZone
	}
	return ev
}

func parseEventTime(dt *gcal.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("no time")
	}
	if dt.DateTime == "" {
		return time.Time{}, fmt.Errorf("all-day event (date %q)", dt.Date)
	}
	return time.Parse(time.RFC3339, dt.DateTime)
}
