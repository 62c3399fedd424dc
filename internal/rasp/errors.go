package rasp

import (
	"errors"
	"fmt"
)

// ErrNoProviders нет ни одного провайдера для траектории обучения
var ErrNoProviders = errors.New("rasp: no providers for education space")

// AuthError не удалось обменять логин и пароль на токен.
// Провайдер непригоден в текущем проходе.
type AuthError struct {
	UserName string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("rasp: authenticate %s: %v", e.UserName, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError сетевая ошибка, неожиданный статус или битый ответ upstream
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rasp: %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("rasp: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsAuthError проверяет, что ошибка вызвана неудачной авторизацией
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
