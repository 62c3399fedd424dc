package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"go.uber.org/zap"
)

// ErrStudentNotFound студента нет в справочнике
var ErrStudentNotFound = errors.New("student not found in directory")

// AccountVerifier проверяет учётные данные в API расписания
type AccountVerifier interface {
	TryAuth(ctx context.Context, userName, password string) (*rasp.Account, error)
}

// ProviderSaver сохраняет провайдера пользователя
type ProviderSaver interface {
	UpsertByOwner(ctx context.Context, p *model.Provider) error
}

// CalendarManager создаёт календари и выдаёт доступ
type CalendarManager interface {
	CreateCalendar(ctx context.Context, summary string) (string, error)
	GrantWriter(ctx context.Context, calendarID, email string) error
}

// UserStore пользователи бота
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Save(ctx context.Context, user *model.User) error
}

// DirectoryRefresher обновляет справочник студентов
type DirectoryRefresher interface {
	UpdateStudentList(ctx context.Context, force bool) error
}

type UserService struct {
	verifier  AccountVerifier
	providers ProviderSaver
	calendars CalendarManager
	users     UserStore
	directory DirectoryRefresher
	students  *DirectoryCache
	logger    *zap.Logger
}

func NewUserService(
	verifier AccountVerifier,
	providers ProviderSaver,
	calendars CalendarManager,
	users UserStore,
	directory DirectoryRefresher,
	students *DirectoryCache,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		verifier:  verifier,
		providers: providers,
		calendars: calendars,
		users:     users,
		directory: directory,
		students:  students,
		logger:    logger,
	}
}

// Register привязывает учётную запись расписания к пользователю Telegram.
// Пароль сохраняется как провайдер, календарь создаётся один раз и переиспользуется.
func (s *UserService) Register(ctx context.Context, telegramID int64, firstName, userName, password string) (*model.User, error) {
	account, err := s.verifier.TryAuth(ctx, userName, password)
	if err != nil {
		return nil, fmt.Errorf("verify account: %w", err)
	}

	provider := &model.Provider{
		OwnerID:          telegramID,
		EducationSpaceID: account.SpaceID,
		UserName:         userName,
		Password:         password,
		AccessToken:      account.AccessToken,
	}
	if err := s.providers.UpsertByOwner(ctx, provider); err != nil {
		return nil, fmt.Errorf("save provider: %w", err)
	}

	// Новый провайдер может открыть справочник новой траектории
	if err := s.directory.UpdateStudentList(ctx, true); err != nil {
		s.logger.Warn("Failed to refresh student directory", zap.Error(err))
	}

	existing, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	calendarID := ""
	if existing != nil {
		calendarID = existing.CalendarID
	}

	if calendarID == "" {
		calendarID, err = s.calendars.CreateCalendar(ctx, s.calendarSummary(account.StudentID, firstName))
		if err != nil {
			return nil, fmt.Errorf("create calendar: %w", err)
		}
	}

	if err := s.calendars.GrantWriter(ctx, calendarID, userName); err != nil {
		s.logger.Warn("Failed to grant calendar access",
			zap.Int64("user_id", telegramID),
			zap.String("calendar_id", calendarID),
			zap.Error(err),
		)
	}

	// Пустой хэш и время заставят следующий проход синхронизировать календарь
	user := &model.User{
		ID:               telegramID,
		StudentID:        account.StudentID,
		EducationSpaceID: account.SpaceID,
		CalendarID:       calendarID,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info("User registered",
		zap.Int64("user_id", telegramID),
		zap.Int64("student_id", account.StudentID),
		zap.Int64("space_id", account.SpaceID),
		zap.String("provider_id", provider.ID),
	)

	return user, nil
}

// Subscribe подписывает пользователя на расписание студента из справочника без входа
// в личный кабинет. Расписание будет получено через провайдеров траектории студента.
func (s *UserService) Subscribe(ctx context.Context, telegramID, studentID int64) (*model.User, error) {
	student, ok := s.students.Find(studentID)
	if !ok {
		return nil, fmt.Errorf("subscribe to student %d: %w", studentID, ErrStudentNotFound)
	}

	existing, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	calendarID := ""
	if existing != nil {
		calendarID = existing.CalendarID
	}

	if calendarID == "" {
		summary := student.ShortName
		if summary == "" {
			summary = student.FullName
		}
		calendarID, err = s.calendars.CreateCalendar(ctx, summary)
		if err != nil {
			return nil, fmt.Errorf("create calendar: %w", err)
		}
	}

	user := &model.User{
		ID:               telegramID,
		StudentID:        student.ID,
		EducationSpaceID: student.SpaceID,
		CalendarID:       calendarID,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info("User subscribed to student",
		zap.Int64("user_id", telegramID),
		zap.Int64("student_id", student.ID),
		zap.Int64("space_id", student.SpaceID),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByID(ctx, telegramID)
}

// Student ищет студента пользователя в справочнике
func (s *UserService) Student(studentID int64) (model.Student, bool) {
	return s.students.Find(studentID)
}

func (s *UserService) calendarSummary(studentID int64, firstName string) string {
	if st, ok := s.students.Find(studentID); ok && st.ShortName != "" {
		return st.ShortName
	}
	return firstName
}
