package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/service"
)

const testBaseURL = "http://blog.test"

type fakeMailer struct {
	mu   sync.Mutex
	sent []domain.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg domain.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type resetFixture struct {
	auth   *service.AuthService
	reset  *service.ResetService
	mailer *fakeMailer
	now    time.Time
}

func newResetFixture(t *testing.T, singleUse bool) *resetFixture {
	t.Helper()
	f := &resetFixture{mailer: &fakeMailer{}, now: time.Now()}
	clock := func() time.Time { return f.now }

	db := newTestDB(t)
	f.auth = service.NewAuthService(db.Users(), testJWTSecret, 4, service.WithAuthClock(clock))

	opts := []service.ResetOption{service.WithResetClock(clock)}
	if singleUse {
		opts = append(opts, service.WithConsumedTokenStore(db.ConsumedTokens()))
	}
	f.reset = service.NewResetService(db.Users(), f.auth, f.mailer, testJWTSecret, 30*time.Minute, testBaseURL, opts...)
	return f
}

func TestResetService_Scenario(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")

	// A token minted in the past has already expired.
	f.now = time.Now().Add(-time.Hour)
	stale, err := f.reset.Issue(ctx, alice)
	if err != nil {
		t.Fatalf("Issue stale: %v", err)
	}
	f.now = time.Now()
	if _, err := f.reset.Verify(ctx, stale); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}

	token, err := f.reset.Issue(ctx, alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	user, err := f.reset.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}

	if _, err := f.reset.Reset(ctx, token, "pw2", "pw2"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw1"); !errors.Is(err, domain.ErrAuthFailure) {
		t.Fatalf("old password should fail, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw2"); err != nil {
		t.Fatalf("new password should succeed: %v", err)
	}
}

func TestResetService_Issue_SendsEmail(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Issue(ctx, alice)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if f.mailer.count() != 1 {
		t.Fatalf("expected 1 email, got %d", f.mailer.count())
	}
	msg := f.mailer.sent[0]
	if msg.To != "alice@example.com" {
		t.Fatalf("expected recipient alice@example.com, got %s", msg.To)
	}
	link := testBaseURL + "/api/reset_password/" + token
	if !strings.Contains(msg.TextBody, link) {
		t.Fatalf("text body missing link %q:\n%s", link, msg.TextBody)
	}
	if !strings.Contains(msg.HTMLBody, token) {
		t.Fatalf("html body missing token:\n%s", msg.HTMLBody)
	}
}

func TestResetService_Issue_DeliveryFailure(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	f.mailer.err = errors.New("connection refused")

	token, err := f.reset.Issue(ctx, alice)
	if !errors.Is(err, domain.ErrDeliveryFailure) {
		t.Fatalf("expected ErrDeliveryFailure, got %v", err)
	}
	if token == "" {
		t.Fatal("expected the token to be returned despite delivery failure")
	}

	// Credentials are untouched.
	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw1"); err != nil {
		t.Fatalf("password should be unchanged: %v", err)
	}
}

func TestResetService_RequestReset(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")

	if err := f.reset.RequestReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should be silent, got %v", err)
	}
	if f.mailer.count() != 0 {
		t.Fatalf("expected no email for unknown address, got %d", f.mailer.count())
	}

	if err := f.reset.RequestReset(ctx, " alice@example.com "); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if f.mailer.count() != 1 {
		t.Fatalf("expected 1 email, got %d", f.mailer.count())
	}

	if err := f.reset.RequestReset(ctx, "not-an-email"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResetService_Verify_Rejects(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	session, err := f.auth.IssueSession(alice, false)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	bob := mustRegister(t, f.auth, "bob", "bob@example.com", "pw1")
	forged := withSubject(t, token, strconv.FormatInt(bob.ID, 10))

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":     "1",
		"exp":     time.Now().Add(time.Hour).Unix(),
		"purpose": "password_reset",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"tampered signature", token[:len(token)-5] + "XXXXX"},
		{"tampered subject", forged},
		{"session token", session.Token},
		{"alg none", noneToken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.reset.Verify(ctx, tc.token); !errors.Is(err, domain.ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

// withSubject rewrites the sub claim of a signed token and keeps the
// original signature.
func withSubject(t *testing.T, token, sub string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if claims["sub"] == sub {
		t.Fatalf("subject already %q", sub)
	}
	claims["sub"] = sub
	payload, err = json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)
	return strings.Join(parts, ".")
}

func TestResetService_ResetTokenIsNotASession(t *testing.T) {
	f := newResetFixture(t, true)

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.auth.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResetService_Verify_WrongSecret(t *testing.T) {
	f := newResetFixture(t, false)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")

	db := newTestDB(t)
	other := service.NewResetService(db.Users(), f.auth, f.mailer, "another-secret-that-is-long-enough!!", time.Minute, testBaseURL)
	token, err := other.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.reset.Verify(ctx, token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestResetService_SingleUse(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.reset.Reset(ctx, token, "pw2", "pw2"); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	if _, err := f.reset.Verify(ctx, token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected consumed token to fail Verify, got %v", err)
	}
	if _, err := f.reset.Reset(ctx, token, "pw3", "pw3"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected consumed token to fail Reset, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw2"); err != nil {
		t.Fatalf("pw2 should still be valid: %v", err)
	}
}

func TestResetService_ReusableWhenSingleUseDisabled(t *testing.T) {
	f := newResetFixture(t, false)
	ctx := context.Background()

	if f.reset.SingleUse() {
		t.Fatal("expected single-use to be disabled")
	}

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.reset.Reset(ctx, token, "pw2", "pw2"); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	if _, err := f.reset.Reset(ctx, token, "pw3", "pw3"); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw3"); err != nil {
		t.Fatalf("pw3 should be valid: %v", err)
	}
}

func TestResetService_Reset_InvalidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
	}{
		{"mismatch", "pw2", "other"},
		{"empty", "", ""},
		{"over bcrypt limit", strings.Repeat("a", 73), strings.Repeat("a", 73)},
		// 40 runes but 80 bytes.
		{"multibyte over bcrypt limit", strings.Repeat("é", 40), strings.Repeat("é", 40)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newResetFixture(t, true)
			ctx := context.Background()

			alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
			token, err := f.reset.Mint(alice)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}

			if _, err := f.reset.Reset(ctx, token, tc.password, tc.confirm); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}

			// A rejected attempt does not burn the token or touch the password.
			if _, err := f.reset.Verify(ctx, token); err != nil {
				t.Fatalf("token should still verify: %v", err)
			}
			if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw1"); err != nil {
				t.Fatalf("old password should still work: %v", err)
			}

			if _, err := f.reset.Reset(ctx, token, "pw2", "pw2"); err != nil {
				t.Fatalf("Reset after invalid attempt: %v", err)
			}
			if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw2"); err != nil {
				t.Fatalf("new password should work: %v", err)
			}
		})
	}
}

func TestResetService_Reset_AfterSuccessRejectsEvenInvalidInput(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := f.reset.Reset(ctx, token, "pw2", "pw2"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := f.reset.Reset(ctx, token, strings.Repeat("a", 73), strings.Repeat("a", 73)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.reset.Reset(ctx, token, "pw3", "pw3"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for a used token, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice@example.com", "pw2"); err != nil {
		t.Fatalf("password from the first reset should stand: %v", err)
	}
}

func TestResetService_Expiry(t *testing.T) {
	f := newResetFixture(t, true)
	ctx := context.Background()

	alice := mustRegister(t, f.auth, "alice", "alice@example.com", "pw1")
	token, err := f.reset.Mint(alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	f.now = f.now.Add(29 * time.Minute)
	if _, err := f.reset.Verify(ctx, token); err != nil {
		t.Fatalf("token should be valid before expiry: %v", err)
	}

	f.now = f.now.Add(2 * time.Minute)
	if _, err := f.reset.Verify(ctx, token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after expiry, got %v", err)
	}
}
