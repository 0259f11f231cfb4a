package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/quill/internal/domain"
)

const (
	defaultSessionTTL  = 24 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
)

// Session is a signed login token handed to the client as a cookie.
type Session struct {
	Token     string
	ExpiresAt time.Time
	// Persistent is true for "remember me" logins; the cookie should
	// outlive the browser session.
	Persistent bool
}

// AuthService owns credentials: registration, authentication, password
// changes and session tokens.
type AuthService struct {
	users       domain.UserRepository
	jwtSecret   []byte
	bcryptCost  int
	sessionTTL  time.Duration
	rememberTTL time.Duration
	now         func() time.Time
	// dummyHash is compared against when the email is unknown so that
	// both failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithSessionTTL sets the lifetime of normal and "remember me" sessions.
func WithSessionTTL(session, remember time.Duration) AuthOption {
	return func(s *AuthService) {
		s.sessionTTL = session
		s.rememberTTL = remember
	}
}

// WithAuthClock replaces time.Now, for tests.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.UserRepository, jwtSecret string, bcryptCost int, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:       users,
		jwtSecret:   []byte(jwtSecret),
		bcryptCost:  bcryptCost,
		sessionTTL:  defaultSessionTTL,
		rememberTTL: defaultRememberTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// A failure here leaves dummyHash nil; CompareHashAndPassword then
	// returns immediately, which only weakens the timing equalisation.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return s
}

// Register creates a new user account after validating inputs.
func (s *AuthService) Register(ctx context.Context, username, email, password, confirmPassword string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateInput(registrationInput{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
	}); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		ImageFile:    domain.DefaultImageFile,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Authenticate checks an email/password pair. Unknown email and wrong
// password both yield domain.ErrAuthFailure.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrAuthFailure
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrAuthFailure
	}

	return user, nil
}

// Login authenticates and issues a session in one step.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool) (*domain.User, Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, Session{}, err
	}

	session, err := s.IssueSession(user, remember)
	if err != nil {
		return nil, Session{}, err
	}
	return user, session, nil
}

// IssueSession signs a session token for the user.
func (s *AuthService) IssueSession(user *domain.User, remember bool) (Session, error) {
	ttl := s.sessionTTL
	if remember {
		ttl = s.rememberTTL
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	token, err := signToken(s.jwtSecret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Purpose: purposeSession,
	})
	if err != nil {
		return Session{}, fmt.Errorf("generate jwt: %w", err)
	}

	return Session{Token: token, ExpiresAt: expiresAt, Persistent: remember}, nil
}

// ValidateToken parses and validates a session token string.
// Returns the user ID from the sub claim.
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	claims, err := parseToken(s.jwtSecret, tokenString, purposeSession, s.now)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}

	userID, err := subjectUserID(claims)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}

	return userID, nil
}

// SetPassword replaces the user's password hash.
func (s *AuthService) SetPassword(ctx context.Context, user *domain.User, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash
	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetUserByUsername retrieves a user by their username.
func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
