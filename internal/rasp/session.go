package rasp

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"go.uber.org/zap"
)

// SessionState состояние сессии провайдера
type SessionState int

const (
	StateUnauthenticated SessionState = iota // токена нет
	StateAuthenticated                       // токен есть, upstream его ещё не отвергал
	StateExpired                             // проба сессии показала, что токен больше не действует
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// TokenStore сохраняет обновлённый токен провайдера
type TokenStore interface {
	UpdateAccessToken(ctx context.Context, providerID, token string) error
}

// authenticator то, что нужно сессии от upstream
type authenticator interface {
	probe(ctx context.Context, token string) (bool, error)
	exchange(ctx context.Context, userName, password string) (*tokenAuthResponse, error)
}

// Session сессия одного провайдера. Не потокобезопасна: живёт в рамках одного запроса.
type Session struct {
	auth     authenticator
	tokens   TokenStore
	provider *model.Provider
	state    SessionState
	logger   *zap.Logger
}

func newSession(auth authenticator, tokens TokenStore, provider *model.Provider, logger *zap.Logger) *Session {
	state := StateUnauthenticated
	if provider.AccessToken != "" {
		state = StateAuthenticated
	}

	return &Session{
		auth:     auth,
		tokens:   tokens,
		provider: provider,
		state:    state,
		logger:   logger.With(zap.String("provider_id", provider.ID)),
	}
}

// State возвращает текущее состояние сессии
func (s *Session) State() SessionState {
	return s.state
}

// Token возвращает действующий токен, при необходимости переавторизуясь
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.state == StateAuthenticated {
		valid, err := s.auth.probe(ctx, s.provider.AccessToken)
		if err != nil {
			s.logger.Warn("Session probe failed", zap.Error(err))
		}
		if valid {
			return s.provider.AccessToken, nil
		}
		s.state = StateExpired
	}

	return s.authenticate(ctx)
}

// authenticate обменивает логин и пароль на новый токен и сохраняет его
func (s *Session) authenticate(ctx context.Context) (string, error) {
	s.logger.Info("Authenticating provider", zap.String("user_name", s.provider.UserName))

	resp, err := s.auth.exchange(ctx, s.provider.UserName, s.provider.Password)
	if err != nil {
		s.state = StateUnauthenticated
		return "", &AuthError{UserName: s.provider.UserName, Err: err}
	}

	token := resp.accessToken()
	if token == "" {
		s.state = StateUnauthenticated
		return "", &AuthError{UserName: s.provider.UserName, Err: fmt.Errorf("empty access token (state %d: %s)", resp.State, resp.Msg)}
	}

	s.provider.AccessToken = token
	s.state = StateAuthenticated

	if s.tokens != nil && s.provider.ID != "" {
		if err := s.tokens.UpdateAccessToken(ctx, s.provider.ID, token); err != nil {
			s.logger.Error("Failed to persist refreshed token", zap.Error(err))
		}
	}

	return token, nil
}

func (r *tokenAuthResponse) accessToken() string {
	if r.Data.AccessToken != "" {
		return r.Data.AccessToken
	}
	return r.Data.Data.AccessToken
}
