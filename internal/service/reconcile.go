package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/format"
	"github.com/Freeeeeet/rasp_bot/internal/model"
	"go.uber.org/zap"
)

// EventStore календарь, в который выкладывается расписание
type EventStore interface {
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]model.CalendarEvent, error)
	CreateEvent(ctx context.Context, calendarID string, ev model.Event) (string, error)
	UpdateEvent(ctx context.Context, calendarID string, ev model.Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Plan набор изменений, приводящий календарь к расписанию
type Plan struct {
	ToCreate []model.Event
	ToUpdate []model.Event // ID указывает на существующее событие
	ToDelete []model.Event
}

// Empty проверяет, что менять нечего
func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// Reconcile сравнивает расписание с событиями календаря по IdentityKey и Fingerprint.
//
// Из нескольких занятий с одним ключом берётся первое, лишние события календаря
// с тем же ключом удаляются. У найденного события остаётся его цвет. Пустое расписание считается сбоем источника:
// в этом случае ничего не удаляется.
func Reconcile(upstream, existing []model.Event) Plan {
	var plan Plan

	byKey := make(map[string][]model.Event, len(existing))
	for _, ev := range existing {
		byKey[ev.IdentityKey] = append(byKey[ev.IdentityKey], ev)
	}

	seen := make(map[string]bool, len(upstream))
	for _, ev := range upstream {
		if seen[ev.IdentityKey] {
			continue
		}
		seen[ev.IdentityKey] = true

		matches := byKey[ev.IdentityKey]
		if len(matches) == 0 {
			plan.ToCreate = append(plan.ToCreate, ev)
			continue
		}

		current := matches[0]
		plan.ToDelete = append(plan.ToDelete, matches[1:]...)

		// Цвет выставленный в календаре сохраняется, кроме цвета резервного источника
		if keepStoredColor(current.ColorID) && current.ColorID != ev.ColorID {
			ev.ColorID = current.ColorID
			ev.Fingerprint = format.Fingerprint(ev.Title, ev.Location, ev.Description, ev.ColorID)
		}

		if ev.Fingerprint != current.Fingerprint {
			ev.ID = current.ID
			plan.ToUpdate = append(plan.ToUpdate, ev)
		}
	}

	if len(upstream) == 0 {
		return plan
	}

	for _, ev := range existing {
		if !seen[ev.IdentityKey] {
			plan.ToDelete = append(plan.ToDelete, ev)
		}
	}

	return plan
}

func keepStoredColor(colorID string) bool {
	return colorID != "" && colorID != format.ReserveColorID
}

// ApplyResult итог применения плана
type ApplyResult struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// ApplyPlan применяет план тремя пачками: создание, обновление, удаление.
// Ошибка отдельного события логируется и не прерывает остальные.
func ApplyPlan(ctx context.Context, store EventStore, calendarID string, plan Plan, logger *zap.Logger) ApplyResult {
	var res ApplyResult

	for _, ev := range plan.ToCreate {
		if _, err := store.CreateEvent(ctx, calendarID, ev); err != nil {
			res.Failed++
			logger.Error("Failed to create event", zap.String("identity_key", ev.IdentityKey), zap.String("title", ev.Title), zap.Error(err))
			continue
		}
		res.Created++
	}

	for _, ev := range plan.ToUpdate {
		if err := store.UpdateEvent(ctx, calendarID, ev); err != nil {
			res.Failed++
			logger.Error("Failed to update event", zap.String("identity_key", ev.IdentityKey), zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		res.Updated++
	}

	for _, ev := range plan.ToDelete {
		if err := store.DeleteEvent(ctx, calendarID, ev.ID); err != nil {
			res.Failed++
			logger.Error("Failed to delete event", zap.String("identity_key", ev.IdentityKey), zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		res.Deleted++
	}

	return res
}
