// services/auth_service.go
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"invoicely-backend/events"
	"invoicely-backend/models"
	"invoicely-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAccessCode  = errors.New("invalid access code")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccessRevoked      = errors.New("access revoked")
	ErrSessionRevoked     = errors.New("session revoked")
)

// RateLimitedError is returned when too many auth attempts were made.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// Session is the result of a successful signup or signin.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// SessionHook is called after every session change.
type SessionHook func(events.SessionEvent)

// AuthService is the identity provider: accounts gated by an access code,
// JWT sessions and server-side sign out.
type AuthService struct {
	db         *gorm.DB
	tokens     *utils.TokenManager
	accessCode string
	limiter    Limiter
	logger     *zap.Logger
	now        func() time.Time

	mu     sync.RWMutex
	hooks  map[int]SessionHook
	nextID int
}

func NewAuthService(db *gorm.DB, tokens *utils.TokenManager, accessCode string, limiter Limiter, logger *zap.Logger) *AuthService {
	if limiter == nil {
		limiter = NoopLimiter{}
	}
	return &AuthService{
		db:         db,
		tokens:     tokens,
		accessCode: accessCode,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
		hooks:      make(map[int]SessionHook),
	}
}

// OnSessionChange registers fn for signup, signin and signout events and
// returns a function that removes it.
func (s *AuthService) OnSessionChange(fn SessionHook) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.hooks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.hooks, id)
		s.mu.Unlock()
	}
}

func (s *AuthService) notify(eventType string, userID uuid.UUID) {
	event := events.SessionEvent{Type: eventType, UserID: userID, At: s.now().UTC()}
	s.mu.RLock()
	hooks := make([]SessionHook, 0, len(s.hooks))
	for _, h := range s.hooks {
		hooks = append(hooks, h)
	}
	s.mu.RUnlock()
	for _, h := range hooks {
		h(event)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) throttle(ctx context.Context, action, key string) error {
	allowed, retryAfter, err := s.limiter.Allow(ctx, action+":"+key)
	if err != nil {
		// A broken limiter must not lock everyone out.
		s.logger.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return &RateLimitedError{RetryAfter: retryAfter}
	}
	return nil
}

// SignUp creates an account when accessCode matches the configured code.
func (s *AuthService) SignUp(ctx context.Context, email, password, accessCode, clientKey string) (*Session, error) {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, "signup", clientKey); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(accessCode), []byte(s.accessCode)) != 1 {
		return nil, ErrInvalidAccessCode
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	user := models.User{
		Email:     email,
		Password:  password, // Will be hashed in BeforeCreate hook
		HasAccess: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	s.notify(events.SessionSignedUp, user.ID)
	return session, nil
}

// SignIn checks the password and opens a new session.
func (s *AuthService) SignIn(ctx context.Context, email, password, clientKey string) (*Session, error) {
	email = normalizeEmail(email)
	if err := s.throttle(ctx, "signin", clientKey+":"+email); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.HasAccess {
		return nil, ErrAccessRevoked
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		s.logger.Warn("failed to record last login", zap.Error(err))
	}
	user.LastLogin = &now

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.notify(events.SessionSignedIn, user.ID)
	return session, nil
}

func (s *AuthService) issue(user models.User) (*Session, error) {
	token, claims, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// SignOut revokes the session's token until it expires.
func (s *AuthService) SignOut(ctx context.Context, claims *utils.Claims) error {
	userID, err := claims.UserID()
	if err != nil {
		return err
	}
	revoked := models.RevokedToken{JTI: claims.ID, UserID: userID, ExpiresAt: claims.ExpiresAt.Time}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&revoked).Error; err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.notify(events.SessionSignedOut, userID)
	return nil
}

// VerifySession implements utils.SessionVerifier: the token must be valid,
// not signed out, and its user must still have access.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}

	var revoked int64
	if err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&revoked).Error; err != nil {
		return nil, err
	}
	if revoked > 0 {
		return nil, ErrSessionRevoked
	}

	user, err := s.CurrentUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.HasAccess {
		return nil, ErrAccessRevoked
	}
	return claims, nil
}

// CurrentUser loads a user by id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// PurgeRevokedTokens drops revocations whose tokens have expired anyway.
func (s *AuthService) PurgeRevokedTokens(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}
