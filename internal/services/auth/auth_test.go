package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/services/auth"
	"illust_nest/internal/session"
	"illust_nest/internal/storage"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.LoginResult)
	return res, args.Error(1)
}

func (m *MockAuthAPI) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockAuthAPI) ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) SaveSession(ctx context.Context, meta models.TokenMeta) error {
	return m.Called(ctx, meta).Error(0)
}

func (m *MockSessionRepository) LoadSession(ctx context.Context) (models.TokenMeta, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.TokenMeta), args.Error(1)
}

func (m *MockSessionRepository) DeleteSession(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var (
	testCtx = context.Background()
	now     = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	admin   = models.User{ID: 1, Username: "admin"}
)

func setup() (*auth.Auth, *session.Session, *MockAuthAPI, *MockSessionRepository) {
	api := new(MockAuthAPI)
	repo := new(MockSessionRepository)
	sess := session.New()

	a := auth.New(slog.New(slog.NewTextHandler(io.Discard, nil)), api, sess, repo)
	a.SetClock(func() time.Time { return now })

	return a, sess, api, repo
}

func TestAuth_Login(t *testing.T) {
	t.Run("success populates and persists", func(t *testing.T) {
		a, sess, api, repo := setup()
		meta := models.TokenMeta{User: admin, Token: "tok", ExpiresAt: now.Add(time.Hour)}

		api.On("Login", mock.Anything, dto.LoginRequest{Username: "admin", Password: "secret"}).
			Return(&models.LoginResult{User: admin, Token: "tok", ExpiresAt: meta.ExpiresAt}, nil).Once()
		repo.On("SaveSession", mock.Anything, meta).Return(nil).Once()

		user, err := a.Login(testCtx, " admin ", "secret")
		require.NoError(t, err)
		assert.Equal(t, admin, user)
		assert.Equal(t, "tok", sess.Token())
		repo.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		a, sess, api, repo := setup()

		api.On("Login", mock.Anything, mock.Anything).
			Return(nil, &response.APIError{Code: response.CodeUnauthorized, Message: "invalid username or password"}).Once()

		_, err := a.Login(testCtx, "admin", "nope")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Equal(t, "invalid username or password", response.Message(err))
		assert.False(t, sess.Authenticated())
		repo.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
	})

	t.Run("blank fields send nothing", func(t *testing.T) {
		a, _, api, _ := setup()

		_, err := a.Login(testCtx, "  ", "")
		require.ErrorIs(t, err, validate.ErrValidation)
		assert.Empty(t, api.Calls)
	})
}

func TestAuth_Restore(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		a, sess, _, repo := setup()
		repo.On("LoadSession", mock.Anything).
			Return(models.TokenMeta{User: admin, Token: "tok", ExpiresAt: now.Add(time.Minute)}, nil).Once()

		user, err := a.Restore(testCtx)
		require.NoError(t, err)
		assert.Equal(t, "admin", user.Username)
		assert.True(t, sess.Authenticated())
	})

	t.Run("expired session is deleted", func(t *testing.T) {
		a, sess, _, repo := setup()
		repo.On("LoadSession", mock.Anything).
			Return(models.TokenMeta{User: admin, Token: "tok", ExpiresAt: now}, nil).Once()
		repo.On("DeleteSession", mock.Anything).Return(nil).Once()

		_, err := a.Restore(testCtx)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		assert.False(t, sess.Authenticated())
		repo.AssertExpectations(t)
	})

	t.Run("nothing stored", func(t *testing.T) {
		a, _, _, repo := setup()
		repo.On("LoadSession", mock.Anything).Return(models.TokenMeta{}, storage.ErrSessionNotFound).Once()

		_, err := a.Restore(testCtx)
		require.ErrorIs(t, err, auth.ErrNotLoggedIn)
	})
}

func TestAuth_Watch(t *testing.T) {
	a, sess, _, repo := setup()
	stop := a.Watch()
	defer stop()

	repo.On("DeleteSession", mock.Anything).Return(nil)

	sess.Populate(models.TokenMeta{User: admin, Token: "tok"})
	sess.Clear(session.ReasonUnauthorized)
	repo.AssertNumberOfCalls(t, "DeleteSession", 1)

	t.Run("logout deletes once", func(t *testing.T) {
		sess.Populate(models.TokenMeta{User: admin, Token: "tok"})
		require.NoError(t, a.Logout(testCtx))
		repo.AssertNumberOfCalls(t, "DeleteSession", 2)
	})
}

func TestAuth_ChangePassword(t *testing.T) {
	a, sess, api, _ := setup()

	require.ErrorIs(t, a.ChangePassword(testCtx, "longenough"), auth.ErrNotLoggedIn)

	sess.Populate(models.TokenMeta{User: admin, Token: "tok"})
	require.ErrorIs(t, a.ChangePassword(testCtx, "short"), validate.ErrValidation)

	api.On("ChangePassword", mock.Anything, dto.ChangePasswordRequest{NewPassword: "longenough"}).Return(nil).Once()
	require.NoError(t, a.ChangePassword(testCtx, "longenough"))
	api.AssertExpectations(t)
}
