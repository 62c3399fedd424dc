package model

import "time"

// Provider учётная запись личного кабинета, через которую бот ходит за расписанием.
// Несколько провайдеров могут обслуживать одну траекторию обучения.
type Provider struct {
	ID               string    `json:"id"`
	OwnerID          int64     `json:"owner_id"`
	EducationSpaceID int64     `json:"education_space_id"`
	UserName         string    `json:"user_name"`
	Password         string    `json:"-"`
	AccessToken      string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}
