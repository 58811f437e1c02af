package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskflow/backend/domain"
	"github.com/taskflow/backend/repository"
)

// TokenSigner issues access tokens bound to a session.
type TokenSigner interface {
	Sign(userID, sessionID string, expiresAt time.Time) (string, error)
}

type Config struct {
	SessionTTL time.Duration
	BcryptCost int
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	signer   TokenSigner
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(users repository.UserRepository, sessions repository.SessionRepository, signer TokenSigner, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		signer:   signer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates an account. It does not sign the user in.
func (uc *UseCase) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), uc.cfg.BcryptCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to hash password", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(reg.Name),
		Email:        domain.NormalizeEmail(reg.Email),
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("account registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and opens a session. A still-active session
// presented by the caller is revoked first so a client never holds two.
func (uc *UseCase) Login(ctx context.Context, email, password, currentSessionID string) (*domain.AuthToken, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.Invalid("please enter both email and password")
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.NewError(domain.ErrCodeForbidden, "account is blocked")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if currentSessionID != "" {
		if err := uc.sessions.Delete(ctx, currentSessionID); err != nil {
			uc.logger.Warn("failed to revoke previous session", zap.String("session_id", currentSessionID), zap.Error(err))
		}
	}

	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.cfg.SessionTTL),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return uc.issue(session)
}

// Authenticate resolves the session behind a verified token.
func (uc *UseCase) Authenticate(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// Refresh extends the session and returns a token with the new expiry.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (*domain.AuthToken, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, int(uc.cfg.SessionTTL.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.now().Add(uc.cfg.SessionTTL)
	return uc.issue(session)
}

func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// LogoutEverywhere revokes all sessions of the user.
func (uc *UseCase) LogoutEverywhere(ctx context.Context, userID string) (int, error) {
	n, err := uc.sessions.DeleteForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	uc.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	return n, nil
}

func (uc *UseCase) Account(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

func (uc *UseCase) issue(session *domain.Session) (*domain.AuthToken, error) {
	token, err := uc.signer.Sign(session.UserID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to sign token", err)
	}
	return &domain.AuthToken{
		Token:     token,
		SessionID: session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
