package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CalendarSynchronizer проход синхронизации календарей
type CalendarSynchronizer interface {
	SynchronizeCalendar(ctx context.Context) error
}

// StudentListUpdater обновление справочника студентов
type StudentListUpdater interface {
	UpdateStudentList(ctx context.Context, force bool) error
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron      *cron.Cron
	sync      CalendarSynchronizer
	directory StudentListUpdater
	logger    *zap.Logger
}

// NewScheduler создаёт планировщик. Задачи не перекрываются: следующий запуск
// пропускается, пока идёт предыдущий.
func NewScheduler(spec string, loc *time.Location, sync CalendarSynchronizer, directory StudentListUpdater, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := cronLogger{logger: logger.Named("cron")}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sync:      sync,
		directory: directory,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(spec, s.runSync); err != nil {
		return nil, fmt.Errorf("schedule calendar sync %q: %w", spec, err)
	}
	if _, err := s.cron.AddFunc(spec, s.runDirectory); err != nil {
		return nil, fmt.Errorf("schedule directory refresh %q: %w", spec, err)
	}

	return s, nil
}

// Start запускает фоновые задачи
func (s *Scheduler) Start() {
	s.logger.Info("Starting background scheduler")
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения текущих задач
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Background tasks did not finish in time")
	}
}

// runSync проход синхронизации не отменяется посреди работы
func (s *Scheduler) runSync() {
	if err := s.sync.SynchronizeCalendar(context.Background()); err != nil {
		s.logger.Error("Calendar synchronization failed", zap.Error(err))
	}
}

func (s *Scheduler) runDirectory() {
	if err := s.directory.UpdateStudentList(context.Background(), false); err != nil {
		s.logger.Error("Student directory refresh failed", zap.Error(err))
	}
}

// cronLogger пишет логи cron в zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
