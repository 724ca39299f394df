package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"farm-advisor/internal/models"
	"farm-advisor/internal/repository"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// ErrInvalidCredentials covers unknown users, wrong passwords and
// unknown or expired session tokens alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// Limits on registration input
const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

// AuthService handles registration, login and session tokens
type AuthService struct {
	repo       repository.FarmRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	repo repository.FarmRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	sessionTTL time.Duration,
	bcryptCost int,
) *AuthService {
	return &AuthService{
		repo:       repo,
		logger:     logger,
		metrics:    metricsCollector,
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an account. A taken username or email returns
// *repository.ConflictError.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[AUTH_REGISTER] User registered", logging.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	})

	return user, nil
}

func validateRegistration(username, email, password string) error {
	if n := len(username); n < minUsernameLen || n > maxUsernameLen {
		return &models.ValidationError{
			Field:   "username",
			Value:   username,
			Message: fmt.Sprintf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen),
		}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &models.ValidationError{Field: "email", Value: email, Message: "email address is not valid"}
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return &models.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("password must be between %d and %d characters", minPasswordLen, maxPasswordLen),
		}
	}
	return nil
}

// Login checks the password and issues a session
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Session, *models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			s.loginFailed(ctx, username, "unknown_user")
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.loginFailed(ctx, username, "wrong_password")
		return nil, nil, ErrInvalidCredentials
	}

	now := s.now()
	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, nil, err
	}

	s.metrics.SessionsIssuedTotal.Inc()
	s.logger.Info(ctx, "[AUTH_LOGIN] Session issued", logging.Fields{
		"user_id":    user.ID,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})

	return session, user, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username, reason string) {
	s.metrics.LoginFailuresTotal.Inc()
	s.logger.Warn(ctx, "[AUTH_LOGIN_FAILED] Login rejected", logging.Fields{
		"username": username,
		"reason":   reason,
	})
}

// Authenticate resolves a session token to its user. Unknown and expired
// tokens both return ErrInvalidCredentials; expired ones are removed.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidCredentials
	}

	session, err := s.repo.GetSession(ctx, token)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if session.Expired(s.now()) {
		if err := s.repo.DeleteSession(ctx, token); err != nil {
			s.logger.Warn(ctx, "[AUTH_SESSION_CLEANUP] Failed to delete expired session", logging.Fields{
				"user_id": session.UserID,
				"error":   err.Error(),
			})
		}
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return user, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		return err
	}

	s.logger.Info(ctx, "[AUTH_LOGOUT] Session ended", logging.Fields{})
	return nil
}

// PurgeExpiredSessions removes every session that has expired
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info(ctx, "[AUTH_SESSION_PURGE] Expired sessions removed", logging.Fields{
			"count": n,
		})
	}
	return n, nil
}
