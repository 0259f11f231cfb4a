package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/view"
)

const (
	defaultResetTTL = 30 * time.Minute
	resetPathPrefix = "/api/reset_password/"
	resetSubject    = "Password Reset Request"
)

// ResetService issues and redeems password reset tokens. Tokens are
// self-contained signed JWTs; when a consumed-token store is configured a
// token can be redeemed only once.
type ResetService struct {
	users    domain.UserRepository
	auth     *AuthService
	mailer   domain.Mailer
	consumed domain.ConsumedTokenStore
	secret   []byte
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
}

// ResetOption customises a ResetService.
type ResetOption func(*ResetService)

// WithConsumedTokenStore makes reset tokens single-use.
func WithConsumedTokenStore(store domain.ConsumedTokenStore) ResetOption {
	return func(s *ResetService) { s.consumed = store }
}

// WithResetClock replaces time.Now, for tests.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *ResetService) { s.now = now }
}

// NewResetService creates a ResetService. A non-positive ttl falls back to
// 30 minutes.
func NewResetService(users domain.UserRepository, auth *AuthService, mailer domain.Mailer, secret string, ttl time.Duration, baseURL string, opts ...ResetOption) *ResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	s := &ResetService{
		users:   users,
		auth:    auth,
		mailer:  mailer,
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SingleUse reports whether redeemed tokens are remembered.
func (s *ResetService) SingleUse() bool {
	return s.consumed != nil
}

// Mint signs a reset token for the user without sending anything.
func (s *ResetService) Mint(user *domain.User) (string, error) {
	now := s.now()
	token, err := signToken(s.secret, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Purpose: purposePasswordReset,
	})
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return token, nil
}

// Issue mints a token and emails the reset link to the user. If delivery
// fails the token is still returned alongside an error wrapping
// domain.ErrDeliveryFailure. The user's credentials are never modified.
func (s *ResetService) Issue(ctx context.Context, user *domain.User) (string, error) {
	token, err := s.Mint(user)
	if err != nil {
		return "", err
	}

	link := s.baseURL + resetPathPrefix + token
	html, err := view.Render(ctx, view.PasswordResetEmail(user.Username, link, s.ttl))
	if err != nil {
		return token, fmt.Errorf("render reset email: %w", err)
	}

	msg := domain.Email{
		To:       user.Email,
		Subject:  resetSubject,
		TextBody: view.PasswordResetText(user.Username, link, s.ttl),
		HTMLBody: html,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDeliveryFailure) {
			return token, err
		}
		return token, fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return token, nil
}

// RequestReset issues a token for the account registered under email.
// An unknown email is not an error so callers cannot probe for accounts.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateInput(emailInput{Email: email}); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	_, err = s.Issue(ctx, user)
	return err
}

// Verify returns the user a token was issued to. Any problem with the
// token yields domain.ErrTokenInvalid.
func (s *ResetService) Verify(ctx context.Context, token string) (*domain.User, error) {
	user, _, err := s.verify(ctx, token)
	return user, err
}

// Reset validates the new password, redeems the token and stores the
// password. With single-use enabled the token is consumed before the
// password is written so two concurrent redemptions cannot both succeed.
func (s *ResetService) Reset(ctx context.Context, token, password, confirmPassword string) (*domain.User, error) {
	if err := validateInput(passwordInput{Password: password, ConfirmPassword: confirmPassword}); err != nil {
		return nil, err
	}

	user, claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.consumed != nil {
		ok, err := s.consumed.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			return nil, fmt.Errorf("consume reset token: %w", err)
		}
		if !ok {
			return nil, domain.ErrTokenInvalid
		}
	}

	if err := s.auth.SetPassword(ctx, user, password); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ResetService) verify(ctx context.Context, token string) (*domain.User, *tokenClaims, error) {
	claims, err := parseToken(s.secret, token, purposePasswordReset, s.now)
	if err != nil {
		return nil, nil, domain.ErrTokenInvalid
	}

	userID, err := subjectUserID(claims)
	if err != nil {
		return nil, nil, domain.ErrTokenInvalid
	}

	if s.consumed != nil {
		if claims.ID == "" {
			return nil, nil, domain.ErrTokenInvalid
		}
		used, err := s.consumed.IsConsumed(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check reset token: %w", err)
		}
		if used {
			return nil, nil, domain.ErrTokenInvalid
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrTokenInvalid
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	return user, claims, nil
}
