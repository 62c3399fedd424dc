package handlers

import (
	"github.com/Freeeeeet/rasp_bot/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService *service.UserService
	students    *service.DirectoryCache
	logger      *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(userService *service.UserService, students *service.DirectoryCache, logger *zap.Logger) *Handlers {
	return &Handlers{
		userService: userService,
		students:    students,
		logger:      logger,
	}
}
