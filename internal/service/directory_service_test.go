package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type directoryFixture struct {
	providers *MockProviders
	source    *MockStudentSource
	store     *MockDirectoryStore
	cache     *DirectoryCache
	svc       *DirectoryService
	now       time.Time
}

func newDirectoryFixture() *directoryFixture {
	f := &directoryFixture{
		providers: new(MockProviders),
		source:    new(MockStudentSource),
		store:     new(MockDirectoryStore),
		cache:     NewDirectoryCache(),
		now:       time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
	}

	f.svc = NewDirectoryService(f.providers, f.source, f.store, f.cache, DirectoryOptions{
		Spaces:  []int64{1, 4},
		Refresh: 24 * time.Hour,
	}, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	// Порядок кандидатов совпадает с исходным
	f.svc.shuffle = func(int, func(i, j int)) {}

	return f
}

func TestDirectoryService_FailsOverToNextProvider(t *testing.T) {
	f := newDirectoryFixture()

	broken := &model.Provider{ID: "a", EducationSpaceID: 4}
	working := &model.Provider{ID: "b", EducationSpaceID: 4}
	unused := &model.Provider{ID: "c", EducationSpaceID: 4}
	school := &model.Provider{ID: "d", EducationSpaceID: 1}

	uni := []model.Student{{ID: 7, SpaceID: 4, FullName: "Иванов Иван"}}

	f.providers.On("ListAll", mock.Anything).Return([]*model.Provider{broken, working, unused, school}, nil)
	f.source.On("StudentList", mock.Anything, school).Return([]model.Student{}, nil).Once()
	f.source.On("StudentList", mock.Anything, broken).Return(nil, errors.New("auth failed")).Once()
	f.source.On("StudentList", mock.Anything, working).Return(uni, nil).Once()
	f.store.On("Save", mock.Anything, uni, f.now).Return(nil).Once()

	require.NoError(t, f.svc.UpdateStudentList(context.Background(), false))

	f.providers.AssertExpectations(t)
	f.source.AssertExpectations(t)
	f.store.AssertExpectations(t)
	f.source.AssertNotCalled(t, "StudentList", mock.Anything, unused)

	st, ok := f.cache.Find(7)
	require.True(t, ok)
	assert.Equal(t, "Иванов Иван", st.FullName)
	assert.Equal(t, f.now, f.cache.UpdatedAt())
}

func TestDirectoryService_UnionsSpaces(t *testing.T) {
	f := newDirectoryFixture()

	school := &model.Provider{ID: "s", EducationSpaceID: 1}
	uni := &model.Provider{ID: "u", EducationSpaceID: 4}
	other := &model.Provider{ID: "o", EducationSpaceID: 9}

	schoolList := []model.Student{{ID: 1, SpaceID: 1}}
	uniList := []model.Student{{ID: 2, SpaceID: 4}}

	f.providers.On("ListAll", mock.Anything).Return([]*model.Provider{school, uni, other}, nil)
	f.source.On("StudentList", mock.Anything, school).Return(schoolList, nil)
	f.source.On("StudentList", mock.Anything, uni).Return(uniList, nil)
	f.store.On("Save", mock.Anything, []model.Student{{ID: 1, SpaceID: 1}, {ID: 2, SpaceID: 4}}, f.now).Return(nil).Once()

	require.NoError(t, f.svc.UpdateStudentList(context.Background(), true))
	f.store.AssertExpectations(t)
	f.source.AssertNotCalled(t, "StudentList", mock.Anything, other)
}

func TestDirectoryService_SkipsFreshSnapshot(t *testing.T) {
	f := newDirectoryFixture()
	f.cache.Set(&model.Directory{UpdatedAt: f.now.Add(-time.Hour)})

	require.NoError(t, f.svc.UpdateStudentList(context.Background(), false))
	f.providers.AssertNotCalled(t, "ListAll", mock.Anything)
}

func TestDirectoryService_ForceIgnoresFreshness(t *testing.T) {
	f := newDirectoryFixture()
	f.cache.Set(&model.Directory{UpdatedAt: f.now.Add(-time.Hour)})

	f.providers.On("ListAll", mock.Anything).Return(nil, nil).Once()

	require.NoError(t, f.svc.UpdateStudentList(context.Background(), true))
	f.providers.AssertExpectations(t)
}

func TestDirectoryService_EmptyUnionKeepsSnapshot(t *testing.T) {
	f := newDirectoryFixture()
	previous := &model.Directory{
		Students:  []model.Student{{ID: 5, FullName: "Петров Пётр"}},
		UpdatedAt: f.now.Add(-48 * time.Hour),
	}
	f.cache.Set(previous)

	p := &model.Provider{ID: "a", EducationSpaceID: 4}
	f.providers.On("ListAll", mock.Anything).Return([]*model.Provider{p}, nil)
	f.source.On("StudentList", mock.Anything, p).Return(nil, errors.New("down"))

	require.NoError(t, f.svc.UpdateStudentList(context.Background(), false))

	f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	_, ok := f.cache.Find(5)
	assert.True(t, ok)
	assert.Equal(t, previous.UpdatedAt, f.cache.UpdatedAt())
}

func TestDirectoryService_BacksOffAfterFailure(t *testing.T) {
	f := newDirectoryFixture()
	ctx := context.Background()

	p := &model.Provider{ID: "a", EducationSpaceID: 4}
	students := []model.Student{{ID: 7, SpaceID: 4, FullName: "Иванов Иван"}}

	f.providers.On("ListAll", mock.Anything).Return([]*model.Provider{p}, nil)
	f.source.On("StudentList", mock.Anything, p).Return(nil, errors.New("down")).Once()

	require.NoError(t, f.svc.UpdateStudentList(ctx, false))
	f.providers.AssertNumberOfCalls(t, "ListAll", 1)

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.svc.UpdateStudentList(ctx, false))
	f.providers.AssertNumberOfCalls(t, "ListAll", 1)

	f.now = f.now.Add(15 * time.Minute)
	f.source.On("StudentList", mock.Anything, p).Return(students, nil).Once()
	f.store.On("Save", mock.Anything, students, f.now).Return(nil).Once()

	require.NoError(t, f.svc.UpdateStudentList(ctx, false))
	f.providers.AssertNumberOfCalls(t, "ListAll", 2)
	assert.True(t, f.svc.lastFailure().IsZero())

	f.source.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestDirectoryService_ForceIgnoresBackoff(t *testing.T) {
	f := newDirectoryFixture()
	ctx := context.Background()

	f.providers.On("ListAll", mock.Anything).Return(nil, errors.New("db down"))

	require.Error(t, f.svc.UpdateStudentList(ctx, false))
	require.NoError(t, f.svc.UpdateStudentList(ctx, false))
	require.Error(t, f.svc.UpdateStudentList(ctx, true))

	f.providers.AssertNumberOfCalls(t, "ListAll", 2)
}

func TestDirectoryService_CandidatesDoNotMutateInput(t *testing.T) {
	f := newDirectoryFixture()
	f.svc.shuffle = func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	input := []*model.Provider{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	var order []string
	for p := range f.svc.candidates(input) {
		order = append(order, p.ID)
		if p.ID == "b" {
			break
		}
	}

	assert.Equal(t, []string{"c", "b"}, order)
	assert.Equal(t, "a", input[0].ID)
	assert.Equal(t, "c", input[2].ID)
}

func TestDirectoryService_LoadAndWatch(t *testing.T) {
	f := newDirectoryFixture()

	dir := &model.Directory{Students: []model.Student{{ID: 9, FullName: "Сидоров"}}, UpdatedAt: f.now}
	f.store.On("Get", mock.Anything).Return(dir, nil).Once()
	f.store.On("Listen", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(func())() }).
		Return(nil).Once()

	require.NoError(t, f.svc.Watch(context.Background()))

	f.store.AssertExpectations(t)
	assert.Equal(t, 1, f.cache.Len())
}

func TestDirectoryService_LoadEmptyStore(t *testing.T) {
	f := newDirectoryFixture()
	f.store.On("Get", mock.Anything).Return(nil, nil).Once()

	require.NoError(t, f.svc.Load(context.Background()))
	assert.True(t, f.cache.UpdatedAt().IsZero())
}

func TestDirectoryCache_Search(t *testing.T) {
	c := NewDirectoryCache()
	c.Set(&model.Directory{Students: []model.Student{
		{ID: 1, FullName: "Иванов Иван Иванович"},
		{ID: 2, FullName: "Иванова Мария Петровна"},
		{ID: 3, FullName: "Петров Пётр Петрович"},
		{ID: 4, FullName: "ИВАНЬКОВ Олег"},
	}})

	ids := func(list []model.Student) []int64 {
		var out []int64
		for _, st := range list {
			out = append(out, st.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2, 4}, ids(c.Search("иван", 10)))
	assert.Equal(t, []int64{1, 2}, ids(c.Search("  ИВАНОВ ", 10)))
	assert.Equal(t, []int64{1}, ids(c.Search("иван", 1)))
	assert.Empty(t, c.Search("", 10))
	assert.Empty(t, c.Search("Сидоров", 10))
}
