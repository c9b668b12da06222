package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"greenexchange/models"
	"greenexchange/store"
	"greenexchange/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthOptions tunes AuthService.
type AuthOptions struct {
	BcryptCost int
	SessionTTL time.Duration
	BaseURL    string
}

// AuthService registers users and manages their login sessions.
type AuthService struct {
	store   store.Store
	signer  *utils.TokenSigner
	mailer  utils.Mailer
	metrics *utils.Metrics
	logger  *zap.Logger
	opts    AuthOptions
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// LoginResult is a freshly created session and its signed cookie token.
type LoginResult struct {
	Session *models.Session
	Token   string
}

func NewAuthService(st store.Store, signer *utils.TokenSigner, mailer utils.Mailer, metrics *utils.Metrics, logger *zap.Logger, opts AuthOptions) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 12
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &AuthService{
		store:   st,
		signer:  signer,
		mailer:  mailer,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Signup creates a user with a bcrypt-hashed password.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	user, err := s.signup(ctx, in)
	s.record("signup", err)
	if err != nil {
		return nil, err
	}
	if err := utils.SendWelcomeEmail(s.mailer, user.Email, user.Name, s.opts.BaseURL); err != nil {
		s.logger.Warn("welcome email failed", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	return user, nil
}

func (s *AuthService) signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	_, err := s.store.Users().FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, persistence("find user by email", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: Password must be at most 72 bytes", ErrInvalidInput)
	}
	if err != nil {
		return nil, persistence("hash password", err)
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, persistence("create user", err)
	}
	return user, nil
}

// Login checks the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	result, err := s.login(ctx, in)
	s.record("login", err)
	return result, err
}

func (s *AuthService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validateInput(in); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.Users().FindByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same bcrypt work as a real mismatch.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(in.Password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, persistence("find user by email", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      user.Name,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, persistence("create session", err)
	}
	token, err := s.signer.Sign(session.ID, user.ID.Hex(), user.Name, now, session.ExpiresAt)
	if err != nil {
		return nil, persistence("sign session", err)
	}
	return &LoginResult{Session: session, Token: token}, nil
}

// Logout destroys the session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	var err error
	if sessionID != "" {
		err = persistence("delete session", s.store.Sessions().Delete(ctx, sessionID))
	}
	s.record("logout", err)
	return err
}

// Authenticate resolves a session token into the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := s.store.Sessions().Find(ctx, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, persistence("find session", err)
	}
	if session.Expired(s.now()) {
		if err := s.store.Sessions().Delete(ctx, session.ID); err != nil {
			s.logger.Warn("expired session cleanup failed", zap.String("session_id", session.ID), zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}
	if session.UserID.Hex() != claims.UserID {
		return nil, ErrUnauthenticated
	}

	return &models.Identity{
		SessionID: session.ID,
		UserID:    session.UserID,
		Name:      session.Name,
	}, nil
}

// User loads the account behind an identity.
func (s *AuthService) User(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	return user, persistence("find user", err)
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("greenexchange-dummy"), s.opts.BcryptCost)
	})
	return s.dummyHash
}

func (s *AuthService) record(event string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateEmail):
		result = "duplicate"
	case errors.Is(err, ErrInvalidCredentials):
		result = "invalid_credentials"
	case errors.Is(err, ErrInvalidInput):
		result = "invalid_input"
	default:
		result = "error"
	}
	s.metrics.AuthEvents.WithLabelValues(event, result).Inc()
}
