package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
)

func newAuthService(env *testEnv) *AuthService {
	return NewAuthService(env.repo, env.logger, env.metrics, time.Hour, bcrypt.MinCost)
}

func TestAuthService_RegisterLoginAuthenticateLogout(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  jane ", "jane@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "jane", user.Username)
	assert.NotEqual(t, "s3cret!", user.PasswordHash)

	session, loggedIn, err := svc.Login(ctx, "jane", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	_, err = uuid.Parse(session.Token)
	assert.NoError(t, err, "token should be a uuid")
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	authed, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	require.NoError(t, svc.Logout(ctx, session.Token))
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SessionsIssuedTotal))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	tests := []struct {
		name      string
		username  string
		email     string
		password  string
		wantField string
	}{
		{"short username", "jo", "jo@example.com", "password", "username"},
		{"bad email", "jonas", "not-an-email", "password", "email"},
		{"display name email", "jonas", "Jonas <jonas@example.com>", "password", "email"},
		{"short password", "jonas", "jonas@example.com", "123", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestAuthService_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	_, err := svc.Register(ctx, "kate", "kate@example.com", "password")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "kate", "kate2@example.com", "password")
	var conflict *repository.ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestAuthService_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	_, err := svc.Register(ctx, "liam", "liam@example.com", "password")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "liam", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.LoginFailuresTotal))
}

func TestAuthService_ExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	_, err := svc.Register(ctx, "mia", "mia@example.com", "password")
	require.NoError(t, err)
	session, _, err := svc.Login(ctx, "mia", "password")
	require.NoError(t, err)

	// Jump past the TTL
	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The expired session was removed on first use
	_, err = env.repo.GetSession(ctx, session.Token)
	var notFound *repository.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestAuthService_UnknownToken(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_PurgeExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	_, err := svc.Register(ctx, "noah", "noah@example.com", "password")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "noah", "password")
	require.NoError(t, err)

	n, err := svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
