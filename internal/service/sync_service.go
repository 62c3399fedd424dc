package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/format"
	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncState состояние синхронизации. Только для наблюдения, не блокировка.
type SyncState int32

const (
	SyncIdle SyncState = iota
	SyncRunning
)

func (s SyncState) String() string {
	if s == SyncRunning {
		return "running"
	}
	return "idle"
}

// TimetableSource источник расписания
type TimetableSource interface {
	RaspHash(ctx context.Context, studentID int64, window model.Window) (string, error)
	RaspList(ctx context.Context, p *model.Provider, spaceID, studentID int64, window model.Window) ([]model.Event, error)
	ReserveRasp(ctx context.Context, studentID int64, window model.Window) ([]model.Event, error)
}

// SyncUserStore состояние синхронизации пользователей
type SyncUserStore interface {
	ListStale(ctx context.Context, cutoff time.Time) ([]*model.User, error)
	UpdateSyncState(ctx context.Context, userID int64, hash string, syncedAt time.Time) error
	TouchScheduleUpdate(ctx context.Context, userID int64, syncedAt time.Time) error
}

// SpaceProviders провайдеры траектории обучения
type SpaceProviders interface {
	ListBySpace(ctx context.Context, spaceID int64) ([]*model.Provider, error)
}

// SyncOptions окно активности и пороги устаревания
type SyncOptions struct {
	Location        *time.Location
	ActiveFromHour  int
	ActiveToHour    int // включительно
	ActiveThreshold time.Duration
	IdleThreshold   time.Duration
}

type SyncService struct {
	users     SyncUserStore
	providers SpaceProviders
	source    TimetableSource
	events    EventStore
	opts      SyncOptions
	logger    *zap.Logger

	state atomic.Int32
	now   func() time.Time
	intN  func(n int) int
}

func NewSyncService(
	users SyncUserStore,
	providers SpaceProviders,
	source TimetableSource,
	events EventStore,
	opts SyncOptions,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		users:     users,
		providers: providers,
		source:    source,
		events:    events,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		intN:      rand.IntN,
	}
}

// State возвращает текущее состояние синхронизации
func (s *SyncService) State() SyncState {
	return SyncState(s.state.Load())
}

// Threshold возвращает порог устаревания для момента now: короткий в рабочее время
// с понедельника по субботу, длинный в остальное
func (s *SyncService) Threshold(now time.Time) time.Duration {
	local := now.In(s.opts.Location)
	hour := local.Hour()

	if local.Weekday() != time.Sunday && hour >= s.opts.ActiveFromHour && hour <= s.opts.ActiveToHour {
		return s.opts.ActiveThreshold
	}
	return s.opts.IdleThreshold
}

// SynchronizeCalendar синхронизирует календари всех устаревших пользователей по очереди.
// Ошибка одного пользователя не останавливает остальных.
func (s *SyncService) SynchronizeCalendar(ctx context.Context) error {
	s.state.Store(int32(SyncRunning))
	defer s.state.Store(int32(SyncIdle))

	now := s.now()
	logger := s.logger.With(zap.String("pass_id", uuid.NewString()))

	users, err := s.users.ListStale(ctx, now.Add(-s.Threshold(now)))
	if err != nil {
		return fmt.Errorf("list stale users: %w", err)
	}

	logger.Info("Synchronization started", zap.Int("users", len(users)))

	synced := 0
	for _, user := range users {
		userLogger := logger.With(zap.Int64("user_id", user.ID))

		if err := s.syncUser(ctx, user, userLogger); err != nil {
			userLogger.Error("Failed to synchronize user", zap.Error(err))
			continue
		}
		synced++
	}

	logger.Info("Synchronization completed", zap.Int("users", len(users)), zap.Int("synced", synced))
	return nil
}

// syncUser проводит пользователя через проверку хэша и, если нужно, полную сверку
func (s *SyncService) syncUser(ctx context.Context, user *model.User, logger *zap.Logger) error {
	if !user.CanSync() {
		logger.Debug("Skipping user without calendar or student")
		return nil
	}

	window := model.TwoMonthWindow(s.now(), s.opts.Location)

	hash, err := s.source.RaspHash(ctx, user.StudentID, window)
	if err != nil {
		logger.Warn("Failed to fetch rasp hash, running full sync", zap.Error(err))
	}

	if hash != "" && hash == user.RaspHash {
		if err := s.users.TouchScheduleUpdate(ctx, user.ID, s.now()); err != nil {
			logger.Error("Failed to persist schedule timestamp", zap.Error(err))
		}
		logger.Info("Schedule is up to date")
		return nil
	}

	upstream, reserve, err := s.fetchTimetable(ctx, user, window, logger)
	if err != nil {
		return err
	}

	stored, err := s.events.ListEvents(ctx, user.CalendarID, window.Start, window.End)
	if err != nil {
		return fmt.Errorf("list calendar events: %w", err)
	}

	existing := make([]model.Event, 0, len(stored))
	for _, ce := range stored {
		existing = append(existing, format.FromCalendarEvent(ce))
	}

	plan := Reconcile(upstream, existing)
	res := ApplyPlan(ctx, s.events, user.CalendarID, plan, logger)

	// Пустой хэш не совпадёт ни с одним, и следующий проход снова сверит календарь:
	// повторит упавшие операции или заменит резервные данные основными
	if res.Failed > 0 || reserve {
		hash = ""
	}
	if err := s.users.UpdateSyncState(ctx, user.ID, hash, s.now()); err != nil {
		logger.Error("Failed to persist sync state", zap.Error(err))
	}

	logger.Info("Schedule synchronized",
		zap.Bool("reserve", reserve),
		zap.Int("upstream", len(upstream)),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
	)
	return nil
}

// fetchTimetable берёт расписание у случайного провайдера траектории,
// а при ошибке из резервного источника. reserve сообщает, откуда пришли данные.
func (s *SyncService) fetchTimetable(ctx context.Context, user *model.User, window model.Window, logger *zap.Logger) (events []model.Event, reserve bool, err error) {
	events, err = s.fetchPrimary(ctx, user, window, logger)
	if err == nil {
		return events, false, nil
	}

	logger.Warn("Failed to fetch rasp list, trying the reserve", zap.Error(err))

	events, err = s.source.ReserveRasp(ctx, user.StudentID, window)
	if err != nil {
		return nil, true, fmt.Errorf("fetch reserve rasp: %w", err)
	}
	return events, true, nil
}

func (s *SyncService) fetchPrimary(ctx context.Context, user *model.User, window model.Window, logger *zap.Logger) ([]model.Event, error) {
	providers, err := s.providers.ListBySpace(ctx, user.EducationSpaceID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, rasp.ErrNoProviders
	}

	provider := providers[s.intN(len(providers))]
	logger.Debug("Provider picked", zap.String("provider_id", provider.ID))

	return s.source.RaspList(ctx, provider, user.EducationSpaceID, user.StudentID, window)
}
