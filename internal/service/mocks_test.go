package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"github.com/stretchr/testify/mock"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]model.CalendarEvent, error) {
	args := m.Called(ctx, calendarID, from, to)
	events, _ := args.Get(0).([]model.CalendarEvent)
	return events, args.Error(1)
}

func (m *MockEventStore) CreateEvent(ctx context.Context, calendarID string, ev model.Event) (string, error) {
	args := m.Called(ctx, calendarID, ev)
	return args.String(0), args.Error(1)
}

func (m *MockEventStore) UpdateEvent(ctx context.Context, calendarID string, ev model.Event) error {
	return m.Called(ctx, calendarID, ev).Error(0)
}

func (m *MockEventStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return m.Called(ctx, calendarID, eventID).Error(0)
}

type MockTimetableSource struct {
	mock.Mock
}

func (m *MockTimetableSource) RaspHash(ctx context.Context, studentID int64, window model.Window) (string, error) {
	args := m.Called(ctx, studentID, window)
	return args.String(0), args.Error(1)
}

func (m *MockTimetableSource) RaspList(ctx context.Context, p *model.Provider, spaceID, studentID int64, window model.Window) ([]model.Event, error) {
	args := m.Called(ctx, p, spaceID, studentID, window)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

func (m *MockTimetableSource) ReserveRasp(ctx context.Context, studentID int64, window model.Window) ([]model.Event, error) {
	args := m.Called(ctx, studentID, window)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

type MockSyncUserStore struct {
	mock.Mock
}

func (m *MockSyncUserStore) ListStale(ctx context.Context, cutoff time.Time) ([]*model.User, error) {
	args := m.Called(ctx, cutoff)
	users, _ := args.Get(0).([]*model.User)
	return users, args.Error(1)
}

func (m *MockSyncUserStore) UpdateSyncState(ctx context.Context, userID int64, hash string, syncedAt time.Time) error {
	return m.Called(ctx, userID, hash, syncedAt).Error(0)
}

func (m *MockSyncUserStore) TouchScheduleUpdate(ctx context.Context, userID int64, syncedAt time.Time) error {
	return m.Called(ctx, userID, syncedAt).Error(0)
}

type MockProviders struct {
	mock.Mock
}

func (m *MockProviders) ListBySpace(ctx context.Context, spaceID int64) ([]*model.Provider, error) {
	args := m.Called(ctx, spaceID)
	providers, _ := args.Get(0).([]*model.Provider)
	return providers, args.Error(1)
}

func (m *MockProviders) ListAll(ctx context.Context) ([]*model.Provider, error) {
	args := m.Called(ctx)
	providers, _ := args.Get(0).([]*model.Provider)
	return providers, args.Error(1)
}

func (m *MockProviders) UpsertByOwner(ctx context.Context, p *model.Provider) error {
	return m.Called(ctx, p).Error(0)
}

type MockStudentSource struct {
	mock.Mock
}

func (m *MockStudentSource) StudentList(ctx context.Context, p *model.Provider) ([]model.Student, error) {
	args := m.Called(ctx, p)
	students, _ := args.Get(0).([]model.Student)
	return students, args.Error(1)
}

type MockDirectoryStore struct {
	mock.Mock
}

func (m *MockDirectoryStore) Get(ctx context.Context) (*model.Directory, error) {
	args := m.Called(ctx)
	dir, _ := args.Get(0).(*model.Directory)
	return dir, args.Error(1)
}

func (m *MockDirectoryStore) Save(ctx context.Context, students []model.Student, updatedAt time.Time) error {
	return m.Called(ctx, students, updatedAt).Error(0)
}

func (m *MockDirectoryStore) Listen(ctx context.Context, onChange func()) error {
	return m.Called(ctx, onChange).Error(0)
}

type MockAccountVerifier struct {
	mock.Mock
}

func (m *MockAccountVerifier) TryAuth(ctx context.Context, userName, password string) (*rasp.Account, error) {
	args := m.Called(ctx, userName, password)
	account, _ := args.Get(0).(*rasp.Account)
	return account, args.Error(1)
}

type MockCalendarManager struct {
	mock.Mock
}

func (m *MockCalendarManager) CreateCalendar(ctx context.Context, summary string) (string, error) {
	args := m.Called(ctx, summary)
	return args.String(0), args.Error(1)
}

func (m *MockCalendarManager) GrantWriter(ctx context.Context, calendarID, email string) error {
	return m.Called(ctx, calendarID, email).Error(0)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Save(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

type MockDirectoryRefresher struct {
	mock.Mock
}

func (m *MockDirectoryRefresher) UpdateStudentList(ctx context.Context, force bool) error {
	return m.Called(ctx, force).Error(0)
}

// memoryCalendar календарь в памяти для проверки сходимости
type memoryCalendar struct {
	mu     sync.Mutex
	seq    int
	events map[string]model.CalendarEvent
}

func newMemoryCalendar() *memoryCalendar {
	return &memoryCalendar{events: map[string]model.CalendarEvent{}}
}

func (c *memoryCalendar) ListEvents(_ context.Context, _ string, _, _ time.Time) ([]model.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]model.CalendarEvent, 0, len(c.events))
	for _, ev := range c.events {
		list = append(list, ev)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (c *memoryCalendar) CreateEvent(_ context.Context, _ string, ev model.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	ev.ID = fmt.Sprintf("evt%03d", c.seq)
	c.events[ev.ID] = toStored(ev)
	return ev.ID, nil
}

func (c *memoryCalendar) UpdateEvent(_ context.Context, _ string, ev model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[ev.ID]; !ok {
		return fmt.Errorf("event %s not found", ev.ID)
	}
	c.events[ev.ID] = toStored(ev)
	return nil
}

func (c *memoryCalendar) DeleteEvent(_ context.Context, _ string, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.events[eventID]; !ok {
		return fmt.Errorf("event %s not found", eventID)
	}
	delete(c.events, eventID)
	return nil
}

func toStored(ev model.Event) model.CalendarEvent {
	return model.CalendarEvent{
		ID:          ev.ID,
		Start:       ev.Start,
		End:         ev.End,
		TimeZone:    ev.TimeZone,
		Summary:     ev.Title,
		ColorID:     ev.ColorID,
		Location:    ev.Location,
		Description: ev.Description,
	}
}
