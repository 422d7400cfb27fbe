package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/config"
	"github.com/bluelught/doctor-apt/internal/domain"
	"github.com/bluelught/doctor-apt/pkg/auth"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	u.ID = uuid.New()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUserRepo) ListDoctors(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if u.Role == domain.RoleDoctor && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

var _ UserRepository = (*fakeUserRepo)(nil)

func newAuthService(repo *fakeUserRepo) *AuthService {
	jwt := auth.NewJWTManager(config.JWTConfig{
		Secret:          "test-secret-at-least-32-characters-long",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "doctor-apt-test",
	})
	return NewAuthService(repo, jwt, zap.NewNop())
}

func registerCmd(username string, role domain.Role) *RegisterCommand {
	return &RegisterCommand{
		Username: username,
		Email:    username + "@example.com",
		FullName: "Test User",
		Password: "correct-horse",
		Role:     role,
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates active user with hashed password", func(t *testing.T) {
		svc := newAuthService(newFakeUserRepo())

		u, err := svc.Register(context.Background(), registerCmd("alice", domain.RolePatient))
		require.NoError(t, err)
		assert.True(t, u.IsActive)
		assert.NotEqual(t, "correct-horse", u.PasswordHash)
		assert.NotEmpty(t, u.PasswordHash)
	})

	t.Run("validation failures are collected", func(t *testing.T) {
		svc := newAuthService(newFakeUserRepo())

		_, err := svc.Register(context.Background(), &RegisterCommand{
			Username: " ",
			Email:    "not-an-email",
			Password: "short",
			Role:     "admin",
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 4)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		svc := newAuthService(newFakeUserRepo())

		_, err := svc.Register(context.Background(), registerCmd("bob", domain.RoleDoctor))
		require.NoError(t, err)
		_, err = svc.Register(context.Background(), registerCmd("bob", domain.RoleDoctor))
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newAuthService(repo)
	_, err := svc.Register(context.Background(), registerCmd("carol", domain.RoleDoctor))
	require.NoError(t, err)

	t.Run("valid credentials issue a token pair", func(t *testing.T) {
		pair, user, err := svc.Login(context.Background(), "carol", "correct-horse", "10.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "carol", user.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "carol", "wrong", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user gets the same error", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "nobody", "whatever", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("inactive account refused", func(t *testing.T) {
		u, err := svc.Register(context.Background(), registerCmd("dave", domain.RolePatient))
		require.NoError(t, err)

		repo.mu.Lock()
		stored := repo.users[u.ID]
		stored.IsActive = false
		repo.users[u.ID] = stored
		repo.mu.Unlock()

		_, _, err = svc.Login(context.Background(), "dave", "correct-horse", "10.0.0.1")
		assert.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestRefreshToken(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), registerCmd("erin", domain.RolePatient))
	require.NoError(t, err)

	pair, _, err := svc.Login(context.Background(), "erin", "correct-horse", "")
	require.NoError(t, err)

	t.Run("valid refresh token rotates the pair", func(t *testing.T) {
		fresh, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, fresh.AccessToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := svc.RefreshToken(context.Background(), pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.RefreshToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestListDoctors(t *testing.T) {
	svc := newAuthService(newFakeUserRepo())
	_, err := svc.Register(context.Background(), registerCmd("doc1", domain.RoleDoctor))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), registerCmd("pat1", domain.RolePatient))
	require.NoError(t, err)

	doctors, err := svc.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, domain.RoleDoctor, doctors[0].Role)
}
