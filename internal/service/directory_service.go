package service

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// StudentSource справочник студентов от имени провайдера
type StudentSource interface {
	StudentList(ctx context.Context, p *model.Provider) ([]model.Student, error)
}

// ProviderLister все провайдеры
type ProviderLister interface {
	ListAll(ctx context.Context) ([]*model.Provider, error)
}

// DirectoryStore хранилище снимка справочника
type DirectoryStore interface {
	Get(ctx context.Context) (*model.Directory, error)
	Save(ctx context.Context, students []model.Student, updatedAt time.Time) error
	Listen(ctx context.Context, onChange func()) error
}

const defaultDirectoryRetry = 15 * time.Minute

// DirectoryOptions настройки обновления справочника
type DirectoryOptions struct {
	Spaces  []int64
	Refresh time.Duration
	Retry   time.Duration // пауза после неудачного обновления
}

type DirectoryService struct {
	providers ProviderLister
	source    StudentSource
	store     DirectoryStore
	cache     *DirectoryCache
	opts      DirectoryOptions
	logger    *zap.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))

	mu       sync.Mutex
	failedAt time.Time
}

func NewDirectoryService(
	providers ProviderLister,
	source StudentSource,
	store DirectoryStore,
	cache *DirectoryCache,
	opts DirectoryOptions,
	logger *zap.Logger,
) *DirectoryService {
	if opts.Retry <= 0 {
		opts.Retry = defaultDirectoryRetry
	}

	return &DirectoryService{
		providers: providers,
		source:    source,
		store:     store,
		cache:     cache,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}
}

// UpdateStudentList обновляет справочник студентов. Без force ничего не делает,
// пока снимок моложе DirectoryOptions.Refresh или после неудачи не прошло DirectoryOptions.Retry.
func (s *DirectoryService) UpdateStudentList(ctx context.Context, force bool) error {
	now := s.now()

	if !force {
		if updated := s.cache.UpdatedAt(); !updated.IsZero() && now.Sub(updated) < s.opts.Refresh {
			return nil
		}
		if failedAt := s.lastFailure(); !failedAt.IsZero() && now.Sub(failedAt) < s.opts.Retry {
			s.logger.Debug("Student directory refresh is backing off", zap.Time("failed_at", failedAt))
			return nil
		}
	}

	providers, err := s.providers.ListAll(ctx)
	if err != nil {
		s.setLastFailure(now)
		return fmt.Errorf("list providers: %w", err)
	}

	bySpace := make(map[int64][]*model.Provider)
	for _, p := range providers {
		bySpace[p.EducationSpaceID] = append(bySpace[p.EducationSpaceID], p)
	}

	var students []model.Student
	for _, space := range s.opts.Spaces {
		list := s.firstNonEmpty(ctx, s.candidates(bySpace[space]))
		if len(list) == 0 {
			s.logger.Warn("No provider returned students", zap.Int64("space_id", space))
			continue
		}
		students = append(students, list...)
	}

	if len(students) == 0 {
		s.setLastFailure(now)
		s.logger.Warn("Student directory is empty, keeping the previous snapshot")
		return nil
	}

	if err := s.store.Save(ctx, students, now); err != nil {
		s.setLastFailure(now)
		return fmt.Errorf("save student directory: %w", err)
	}
	s.cache.Set(&model.Directory{Students: students, UpdatedAt: now})
	s.setLastFailure(time.Time{})

	s.logger.Info("Student directory updated", zap.Int("students", len(students)))
	return nil
}

func (s *DirectoryService) lastFailure() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedAt
}

func (s *DirectoryService) setLastFailure(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedAt = at
}

// candidates перебирает провайдеров в случайном порядке, не меняя исходный срез
func (s *DirectoryService) candidates(providers []*model.Provider) iter.Seq[*model.Provider] {
	shuffled := slices.Clone(providers)
	s.shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return func(yield func(*model.Provider) bool) {
		for _, p := range shuffled {
			if !yield(p) {
				return
			}
		}
	}
}

// firstNonEmpty возвращает первый непустой список студентов
func (s *DirectoryService) firstNonEmpty(ctx context.Context, candidates iter.Seq[*model.Provider]) []model.Student {
	for p := range candidates {
		students, err := s.source.StudentList(ctx, p)
		if err != nil {
			s.logger.Warn("Failed to fetch student list", zap.String("provider_id", p.ID), zap.Error(err))
			continue
		}
		if len(students) > 0 {
			return students
		}
	}
	return nil
}

// Load загружает снимок справочника в кэш
func (s *DirectoryService) Load(ctx context.Context) error {
	dir, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load student directory: %w", err)
	}
	if dir != nil {
		s.cache.Set(dir)
	}
	return nil
}

// Watch держит кэш в актуальном состоянии, пока не отменён ctx
func (s *DirectoryService) Watch(ctx context.Context) error {
	return s.store.Listen(ctx, func() {
		if err := s.Load(ctx); err != nil {
			s.logger.Error("Failed to reload student directory", zap.Error(err))
		}
	})
}

// DirectoryCache снимок справочника студентов в памяти
type DirectoryCache struct {
	mu       sync.RWMutex
	students []model.Student
	byID     map[int64]model.Student
	folded   []string
	updated  time.Time
}

func NewDirectoryCache() *DirectoryCache {
	return &DirectoryCache{byID: map[int64]model.Student{}}
}

// Set заменяет снимок
func (c *DirectoryCache) Set(dir *model.Directory) {
	fold := cases.Fold()

	byID := make(map[int64]model.Student, len(dir.Students))
	folded := make([]string, len(dir.Students))
	for i, st := range dir.Students {
		byID[st.ID] = st
		folded[i] = fold.String(st.FullName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.students = dir.Students
	c.byID = byID
	c.folded = folded
	c.updated = dir.UpdatedAt
}

// UpdatedAt время снимка, нулевое если снимка нет
func (c *DirectoryCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Len количество студентов в снимке
func (c *DirectoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.students)
}

// Find ищет студента по ID
func (c *DirectoryCache) Find(id int64) (model.Student, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.byID[id]
	return st, ok
}

// Search ищет студентов по началу ФИО без учёта регистра
func (c *DirectoryCache) Search(query string, limit int) []model.Student {
	query = cases.Fold().String(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var found []model.Student
	for i, name := range c.folded {
		if strings.HasPrefix(name, query) {
			found = append(found, c.students[i])
			if len(found) == limit {
				break
			}
		}
	}
	return found
}
