package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/rasp_bot/internal/controller/keyboard"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"github.com/Freeeeeet/rasp_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID

	user, err := h.userService.GetByTelegramID(ctx, update.Message.From.ID)
	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("user_id", update.Message.From.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	if user == nil || user.CalendarID == "" {
		h.sendMessage(ctx, b, chatID, fmt.Sprintf(
			"👋 Привет, %s!\n\n"+
				"Я помогу вам перенести ваше расписание в Google Calendar и Apple iCalendar.\n\n"+
				"Отправьте логин и пароль от личного кабинета:\n"+
				"/auth <логин> <пароль>\n\n"+
				"Или найдите себя в списке студентов:\n"+
				"/student <ФИО>",
			update.Message.From.FirstName,
		))
		return
	}

	h.sendCalendar(ctx, b, chatID, user.CalendarID, "👋 С возвращением!\n\n"+
		"С помощью кнопок ниже вы можете добавить ваше расписание в Google Calendar или Apple iCalendar.\n"+
		"Календарь обновляется автоматически.")
}

// HandleAuth обрабатывает команду /auth <логин> <пароль>
func (h *Handlers) HandleAuth(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	telegramID := update.Message.From.ID

	userName, password, ok := ParseAuthArgs(update.Message.Text)
	if !ok {
		h.sendMessage(ctx, b, chatID, "🔑 Использование: /auth <логин> <пароль>")
		return
	}

	// Сообщение с паролем не должно оставаться в чате
	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: update.Message.ID}); err != nil {
		h.logger.Warn("Failed to delete credentials message", zap.Int64("user_id", telegramID), zap.Error(err))
	}

	h.sendMessage(ctx, b, chatID, "⏳ Проверяю данные и готовлю календарь...")

	user, err := h.userService.Register(ctx, telegramID, update.Message.From.FirstName, userName, password)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Int64("user_id", telegramID), zap.Error(err))

		var authErr *rasp.AuthError
		if errors.As(err, &authErr) {
			h.sendError(ctx, b, chatID, "❌ Не удалось войти. Проверьте логин и пароль.")
			return
		}
		h.sendError(ctx, b, chatID, "❌ Не удалось создать календарь. Попробуйте позже.")
		return
	}

	text := "✅ Готово! Расписание появится в календаре в течение нескольких минут."
	if st, ok := h.userService.Student(user.StudentID); ok {
		text = fmt.Sprintf("✅ Готово, %s! Расписание появится в календаре в течение нескольких минут.", st.ShortName)
	}
	h.sendCalendar(ctx, b, chatID, user.CalendarID, text)
}

// HandleCalendar обрабатывает команду /calendar
func (h *Handlers) HandleCalendar(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	h.sendCalendar(ctx, b, update.Message.Chat.ID, user.CalendarID, fmt.Sprintf(
		"📅 Ваш календарь:\n\n"+
			"Google Calendar: %s\n"+
			"iCal: %s",
		keyboard.GoogleCalendarURL(user.CalendarID),
		keyboard.ICalURL(user.CalendarID),
	))
}

// HandleStudent обрабатывает команду /student: с ID подписывает на расписание студента,
// с текстом ищет по справочнику
func (h *Handlers) HandleStudent(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	query, studentID := ParseStudentArgs(update.Message.Text)

	if studentID > 0 {
		h.subscribe(ctx, b, chatID, update.Message.From.ID, studentID)
		return
	}

	if len([]rune(query)) < StudentQueryMinLength {
		h.sendMessage(ctx, b, chatID, fmt.Sprintf("🔎 Использование: /student <ФИО>, не меньше %d символов", StudentQueryMinLength))
		return
	}

	found := h.students.Search(query, StudentSearchLimit)
	if len(found) == 0 {
		h.sendMessage(ctx, b, chatID, "🤷 Никого не нашлось.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎓 Найденные студенты:\n")
	for _, st := range found {
		fmt.Fprintf(&sb, "\n• %s, %d курс: /student %d", st.FullName, st.Course, st.ID)
	}
	sb.WriteString("\n\nНажмите на команду рядом с нужным студентом, чтобы получить его расписание.")
	h.sendMessage(ctx, b, chatID, sb.String())
}

func (h *Handlers) subscribe(ctx context.Context, b *bot.Bot, chatID, telegramID, studentID int64) {
	h.sendMessage(ctx, b, chatID, "⏳ Создаю календарь, пожалуйста, подождите...")

	user, err := h.userService.Subscribe(ctx, telegramID, studentID)
	if err != nil {
		h.logger.Error("Failed to subscribe user",
			zap.Int64("user_id", telegramID),
			zap.Int64("student_id", studentID),
			zap.Error(err),
		)

		if errors.Is(err, service.ErrStudentNotFound) {
			h.sendError(ctx, b, chatID, "❌ Студент не найден. Найдите его через /student <ФИО>.")
			return
		}
		h.sendError(ctx, b, chatID, "❌ Произошла ошибка. Попробуйте снова через некоторое время.")
		return
	}

	h.sendCalendar(ctx, b, chatID, user.CalendarID, "✅ Ваш календарь готов! Расписание появится в нём в течение нескольких минут.")
}

// ParseStudentArgs разбирает аргумент команды /student. Положительное число считается ID студента.
func ParseStudentArgs(text string) (query string, studentID int64) {
	query = strings.TrimSpace(strings.TrimPrefix(text, "/student"))

	if id, err := strconv.ParseInt(query, 10, 64); err == nil && id > 0 {
		return "", id
	}
	return query, 0
}

// ParseAuthArgs разбирает аргументы команды /auth
func ParseAuthArgs(text string) (userName, password string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return "", "", false
	}
	return fields[1], fields[2], true
}

// sendCalendar отправляет сообщение с кнопками подписки на календарь
func (h *Handlers) sendCalendar(ctx context.Context, b *bot.Bot, chatID int64, calendarID, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard.Calendar(calendarID),
	})
	if err != nil {
		h.logger.Error("Failed to send calendar message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
