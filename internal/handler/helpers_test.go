package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/handler"
	"github.com/msomdec/quill/internal/repository/sqlite"
	"github.com/msomdec/quill/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

// captureMailer records sent messages and can be switched to fail.
type captureMailer struct {
	mu   sync.Mutex
	sent []domain.Email
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg domain.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) domain.Email {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("expected an email to have been sent")
	}
	return m.sent[len(m.sent)-1]
}

// resetToken pulls the token out of the reset link in a message body.
func resetToken(t *testing.T, msg domain.Email) string {
	t.Helper()
	const marker = "/api/reset_password/"
	i := strings.Index(msg.TextBody, marker)
	if i < 0 {
		t.Fatalf("no reset link in body:\n%s", msg.TextBody)
	}
	token := msg.TextBody[i+len(marker):]
	if j := strings.IndexAny(token, "\r\n"); j >= 0 {
		token = token[:j]
	}
	return token
}

type testEnv struct {
	db     *sqlite.DB
	deps   handler.Deps
	mailer *captureMailer
	srv    *httptest.Server
	client *http.Client
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDeps(t *testing.T, db *sqlite.DB, mailer domain.Mailer) handler.Deps {
	t.Helper()
	users := db.Users()
	auth := service.NewAuthService(users, testJWTSecret, 4)
	avatars := service.NewAvatarService(db.Avatars(), 64<<10)
	return handler.Deps{
		Auth: auth,
		Reset: service.NewResetService(users, auth, mailer, testJWTSecret, 30*time.Minute, "http://blog.test",
			service.WithConsumedTokenStore(db.ConsumedTokens())),
		Accounts: service.NewAccountService(users, avatars),
		Avatars:  avatars,
		Posts:    service.NewPostService(db.Posts(), users),
		HealthChecks: map[string]handler.HealthCheck{
			"database": db.Ping,
		},
	}
}

// newTestEnv starts a server over a fresh database. The client keeps
// cookies and does not follow redirects.
func newTestEnv(t *testing.T, customize ...func(*handler.Deps)) *testEnv {
	t.Helper()
	db := newTestDB(t)
	mailer := &captureMailer{}
	deps := newTestDeps(t, db, mailer)
	for _, fn := range customize {
		fn(&deps)
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, deps)
	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // don't follow redirects automatically
		},
	}

	return &testEnv{db: db, deps: deps, mailer: mailer, srv: srv, client: client}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) register(t *testing.T, username, email, password string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":        username,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	})
	expectStatus(t, resp, http.StatusCreated)
}

func (e *testEnv) login(t *testing.T, email, password string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
	expectStatus(t, resp, http.StatusOK)
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
