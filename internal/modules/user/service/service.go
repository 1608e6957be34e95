package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"anoa.com/studentlms/internal/access"
	"anoa.com/studentlms/internal/entity"
	notifService "anoa.com/studentlms/internal/modules/notification/service"
	studentDto "anoa.com/studentlms/internal/modules/student/dto"
	studentService "anoa.com/studentlms/internal/modules/student/service"
	"anoa.com/studentlms/internal/modules/user/dto"
	"anoa.com/studentlms/internal/modules/user/repository"
	"anoa.com/studentlms/internal/session"
	"anoa.com/studentlms/pkg/apperror"
	commonDto "anoa.com/studentlms/pkg/dto"
	"anoa.com/studentlms/pkg/ratelimiter"
	"anoa.com/studentlms/pkg/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	resetAudience = "password-reset"

	msgResetMismatch = "Passwords don't match"
)

// SessionStore is the part of the session store the auth flow needs.
type SessionStore interface {
	Create(ctx context.Context, userID, role, displayName string) (*session.Session, error)
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type Options struct {
	SecretKey        string
	PasswordResetTTL time.Duration
	SiteURL          string
	RegisterCooldown time.Duration
	LoginMaxAttempts int
	LoginLockout     time.Duration
}

type AuthService interface {
	// Authenticate checks credentials without creating a session.
	Authenticate(ctx context.Context, username, password string) (*access.Identity, error)
	Login(ctx context.Context, input dto.LoginInput, clientIP string) (*dto.LoginResult, error)
	Logout(ctx context.Context, identity *access.Identity) error
	// ResolveSession maps a session token to the identity behind it. Unknown,
	// expired or revoked sessions and blocked accounts resolve to nil.
	ResolveSession(ctx context.Context, sessionID string) (*access.Identity, error)
	Register(ctx context.Context, input studentDto.CreateStudentInput, picture *commonDto.UploadedFile, clientIP string) (*entity.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CheckResetToken(ctx context.Context, token string) error
	ConfirmPasswordReset(ctx context.Context, input dto.PasswordResetConfirmInput) error
}

type authService struct {
	repo          repository.UserRepository
	students      studentService.StudentService
	sessions      SessionStore
	notifications notifService.NotificationService
	redisClient   *redis.Client
	opts          Options
	now           func() time.Time
	bcryptCost    int
}

func NewAuthService(
	repo repository.UserRepository,
	students studentService.StudentService,
	sessions SessionStore,
	notifications notifService.NotificationService,
	redisClient *redis.Client,
	opts Options,
) AuthService {
	return &authService{
		repo:          repo,
		students:      students,
		sessions:      sessions,
		notifications: notifications,
		redisClient:   redisClient,
		opts:          opts,
		now:           time.Now,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

// dummyHash is compared against when the username is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

func (s *authService) Authenticate(ctx context.Context, username, password string) (*access.Identity, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, apperror.ErrAccountBlocked
	}

	role := access.Role(user.Role.Name)
	if !role.Valid() {
		log.Printf("Account %s has no usable role %q", user.Username, user.Role.Name)
		return nil, apperror.ErrInvalidCredentials
	}

	return &access.Identity{
		AccountID:   user.ID,
		Username:    user.Username,
		Role:        role,
		DisplayName: user.FullName(),
	}, nil
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput, clientIP string) (*dto.LoginResult, error) {
	subject := input.Username

	if s.opts.LoginMaxAttempts > 0 {
		failures, err := ratelimiter.Failures(ctx, s.redisClient, subject, ratelimiter.ScopeLogin)
		if err != nil {
			log.Printf("Failed to read login attempts for %s: %v", subject, err)
		} else if failures >= int64(s.opts.LoginMaxAttempts) {
			log.Printf("[audit] login.locked username=%s ip=%s", input.Username, clientIP)
			return nil, apperror.New(http.StatusTooManyRequests,
				"Too many failed login attempts. Please try again later.", apperror.ErrRateLimitExceeded)
		}
	}

	identity, err := s.Authenticate(ctx, input.Username, input.Password)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, apperror.ErrAccountBlocked):
			reason = "account_blocked"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			reason = "invalid_credentials"
		default:
			return nil, err
		}
		log.Printf("[audit] login.failure username=%s ip=%s reason=%s", input.Username, clientIP, reason)

		if s.opts.LoginMaxAttempts > 0 {
			if _, rerr := ratelimiter.RecordFailure(ctx, s.redisClient, subject, ratelimiter.ScopeLogin, s.opts.LoginLockout); rerr != nil {
				log.Printf("Failed to record login attempt for %s: %v", subject, rerr)
			}
		}
		return nil, err
	}

	if err := ratelimiter.ClearFailures(ctx, s.redisClient, subject, ratelimiter.ScopeLogin); err != nil {
		log.Printf("Failed to clear login attempts for %s: %v", subject, err)
	}

	sess, err := s.sessions.Create(ctx, identity.AccountID.String(), string(identity.Role), identity.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	identity.SessionID = sess.ID
	identity.ExpiresAt = sess.ExpiresAt

	log.Printf("[audit] login.success username=%s role=%s ip=%s", identity.Username, identity.Role, clientIP)

	return &dto.LoginResult{
		Identity:  identity,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *authService) Logout(ctx context.Context, identity *access.Identity) error {
	if identity == nil || identity.SessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, identity.SessionID); err != nil {
		return err
	}
	log.Printf("[audit] logout username=%s", identity.Username)
	return nil
}

func (s *authService) ResolveSession(ctx context.Context, sessionID string) (*access.Identity, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = s.sessions.Delete(ctx, sessionID)
			return nil, nil
		}
		return nil, err
	}

	if !user.IsActive {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, nil
	}

	role := access.Role(user.Role.Name)
	if !role.Valid() {
		return nil, nil
	}

	return &access.Identity{
		AccountID:   user.ID,
		Username:    user.Username,
		Role:        role,
		DisplayName: user.FullName(),
		SessionID:   sessionID,
		ExpiresAt:   sess.ExpiresAt,
	}, nil
}

func (s *authService) Register(ctx context.Context, input studentDto.CreateStudentInput, picture *commonDto.UploadedFile, clientIP string) (*entity.User, error) {
	if s.opts.RegisterCooldown > 0 && clientIP != "" {
		ttl, err := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, clientIP, ratelimiter.ScopeRegister)
		if err != nil {
			log.Printf("Failed to read registration cooldown for %s: %v", clientIP, err)
		} else if ttl > 0 {
			return nil, apperror.New(http.StatusTooManyRequests,
				fmt.Sprintf("Too many registrations from your network. Please wait %d seconds.", int(ttl.Seconds())+1),
				apperror.ErrRateLimitExceeded)
		}
	}

	user, err := s.students.Create(ctx, input, picture, "")
	if err != nil {
		return nil, err
	}

	if s.opts.RegisterCooldown > 0 && clientIP != "" {
		if _, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, clientIP, ratelimiter.ScopeRegister, s.opts.RegisterCooldown); err != nil {
			log.Printf("Failed to start registration cooldown for %s: %v", clientIP, err)
		}
	}

	if s.notifications != nil {
		s.notifications.SendWelcome(user)
	}
	log.Printf("[audit] register username=%s ip=%s", user.Username, clientIP)

	return user, nil
}

type resetClaims struct {
	Fingerprint string `json:"pwd"`
	jwt.RegisteredClaims
}

// fingerprint ties a reset token to the password hash it was issued for, so
// the link stops working once the password changes.
func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		log.Printf("[audit] password_reset.skipped username=%s reason=account_blocked", user.Username)
		return nil
	}

	token, err := s.generateResetToken(user)
	if err != nil {
		return err
	}

	link := s.opts.SiteURL + "/password-reset/confirm?token=" + url.QueryEscape(token)
	if s.notifications != nil {
		s.notifications.SendPasswordReset(user, link)
	}
	log.Printf("[audit] password_reset.requested username=%s", user.Username)
	return nil
}

func (s *authService) generateResetToken(user *entity.User) (string, error) {
	now := s.now()
	claims := resetClaims{
		Fingerprint: fingerprint(user.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{resetAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.PasswordResetTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.SecretKey))
}

// parseResetToken returns the account a valid reset token was issued for.
func (s *authService) parseResetToken(ctx context.Context, tokenString string) (*entity.User, error) {
	claims := &resetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.SecretKey), nil
	}, jwt.WithAudience(resetAudience), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperror.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive || claims.Fingerprint != fingerprint(user.PasswordHash) {
		return nil, apperror.ErrInvalidToken
	}

	return user, nil
}

func (s *authService) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.parseResetToken(ctx, token)
	return err
}

func (s *authService) ConfirmPasswordReset(ctx context.Context, input dto.PasswordResetConfirmInput) error {
	user, err := s.parseResetToken(ctx, input.Token)
	if err != nil {
		return err
	}

	ve := apperror.NewValidationError()
	validator.ValidatePasswordPair(ve, "new_password1", "new_password2", input.NewPassword1, input.NewPassword2, msgResetMismatch)
	if err := ve.OrNil(); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword1), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		return err
	}

	if err := s.sessions.DeleteAllForUser(ctx, user.ID.String()); err != nil {
		log.Printf("Failed to revoke sessions of %s: %v", user.Username, err)
	}
	log.Printf("[audit] password_reset.completed username=%s", user.Username)
	return nil
}
