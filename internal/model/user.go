package model

import "time"

// User состояние синхронизации календаря студента
type User struct {
	ID                 int64      `json:"id"` // Telegram ID
	StudentID          int64      `json:"student_id"`
	EducationSpaceID   int64      `json:"education_space_id"`
	CalendarID         string     `json:"calendar_id"`
	RaspHash           string     `json:"rasp_hash"`            // хэш последнего увиденного расписания
	LastScheduleUpdate *time.Time `json:"last_schedule_update"` // nil - ещё ни разу не синхронизировался
	CreatedAt          time.Time  `json:"created_at"`
}

// CanSync проверяет, хватает ли данных для синхронизации
func (u *User) CanSync() bool {
	return u.CalendarID != "" && u.EducationSpaceID != 0 && u.StudentID != 0
}
