package rasp

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuthenticator struct {
	validToken   string
	probeErr     error
	issuedToken  string
	exchangeErr  error
	probeCalls   int
	exchangeCall int
}

func (f *fakeAuthenticator) probe(_ context.Context, token string) (bool, error) {
	f.probeCalls++
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return token != "" && token == f.validToken, nil
}

func (f *fakeAuthenticator) exchange(_ context.Context, _, _ string) (*tokenAuthResponse, error) {
	f.exchangeCall++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	resp := &tokenAuthResponse{}
	resp.Data.AccessToken = f.issuedToken
	return resp, nil
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) UpdateAccessToken(ctx context.Context, providerID, token string) error {
	args := m.Called(ctx, providerID, token)
	return args.Error(0)
}

func TestSession_ValidTokenSkipsExchange(t *testing.T) {
	auth := &fakeAuthenticator{validToken: "tok"}
	tokens := new(MockTokenStore)
	p := &model.Provider{ID: "p1", UserName: "user", AccessToken: "tok"}

	s := newSession(auth, tokens, p, zap.NewNop())
	assert.Equal(t, StateAuthenticated, s.State())

	token, err := s.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok", token)
	assert.Equal(t, 1, auth.probeCalls)
	assert.Equal(t, 0, auth.exchangeCall)
	tokens.AssertNotCalled(t, "UpdateAccessToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_ExpiredTokenIsRotatedAndPersisted(t *testing.T) {
	auth := &fakeAuthenticator{validToken: "fresh", issuedToken: "fresh"}
	tokens := new(MockTokenStore)
	tokens.On("UpdateAccessToken", mock.Anything, "p1", "fresh").Return(nil).Once()
	p := &model.Provider{ID: "p1", UserName: "user", AccessToken: "stale"}

	s := newSession(auth, tokens, p, zap.NewNop())

	token, err := s.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh", token)
	assert.Equal(t, "fresh", p.AccessToken)
	assert.Equal(t, StateAuthenticated, s.State())
	tokens.AssertExpectations(t)
}

func TestSession_NoTokenAuthenticatesWithoutProbe(t *testing.T) {
	auth := &fakeAuthenticator{issuedToken: "fresh"}
	tokens := new(MockTokenStore)
	tokens.On("UpdateAccessToken", mock.Anything, "p1", "fresh").Return(nil)
	p := &model.Provider{ID: "p1", UserName: "user"}

	s := newSession(auth, tokens, p, zap.NewNop())
	assert.Equal(t, StateUnauthenticated, s.State())

	token, err := s.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh", token)
	assert.Equal(t, 0, auth.probeCalls)
}

func TestSession_ProbeErrorTriggersReauth(t *testing.T) {
	auth := &fakeAuthenticator{probeErr: errors.New("connection reset"), issuedToken: "fresh"}
	tokens := new(MockTokenStore)
	tokens.On("UpdateAccessToken", mock.Anything, "p1", "fresh").Return(nil)
	p := &model.Provider{ID: "p1", UserName: "user", AccessToken: "stale"}

	token, err := newSession(auth, tokens, p, zap.NewNop()).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, 1, auth.exchangeCall)
}

func TestSession_PersistFailureIsNotFatal(t *testing.T) {
	auth := &fakeAuthenticator{issuedToken: "fresh"}
	tokens := new(MockTokenStore)
	tokens.On("UpdateAccessToken", mock.Anything, "p1", "fresh").Return(errors.New("db down"))
	p := &model.Provider{ID: "p1", UserName: "user"}

	token, err := newSession(auth, tokens, p, zap.NewNop()).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	tokens.AssertExpectations(t)
}

func TestSession_ExchangeFailureIsAuthError(t *testing.T) {
	auth := &fakeAuthenticator{exchangeErr: errors.New("bad password")}
	p := &model.Provider{ID: "p1", UserName: "user", AccessToken: "stale"}

	s := newSession(auth, nil, p, zap.NewNop())

	_, err := s.Token(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, StateUnauthenticated, s.State())
}

func TestSession_EmptyIssuedTokenIsAuthError(t *testing.T) {
	auth := &fakeAuthenticator{}
	p := &model.Provider{ID: "p1", UserName: "user"}

	_, err := newSession(auth, nil, p, zap.NewNop()).Token(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "user", authErr.UserName)
}
