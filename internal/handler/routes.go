package handler

import (
	"net/http"

	"github.com/msomdec/quill/internal/service"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Auth     *service.AuthService
	Reset    *service.ResetService
	Accounts *service.AccountService
	Avatars  *service.AvatarService
	Posts    *service.PostService
	// Limiter throttles login and reset requests per client IP; nil
	// disables throttling.
	Limiter      service.RateLimiter
	CookieSecure bool
	// HealthChecks are run by GET /healthz, keyed by name.
	HealthChecks map[string]HealthCheck
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	authHandler := NewAuthHandler(d.Auth, d.CookieSecure)
	accountHandler := NewAccountHandler(d.Accounts, d.Avatars)
	resetHandler := NewResetHandler(d.Reset)
	postHandler := NewPostHandler(d.Posts)
	avatarHandler := NewAvatarHandler(d.Avatars)

	anon := func(h http.HandlerFunc) http.Handler { return AnonymousOnly(d.Auth, h) }
	authed := func(h http.HandlerFunc) http.Handler { return RequireAuth(d.Auth, h) }

	mux.HandleFunc("GET /healthz", NewHealthHandler(d.HealthChecks))
	mux.Handle("GET /{$}", OptionalAuth(d.Auth, http.HandlerFunc(postHandler.HandleHome)))

	mux.Handle("POST /api/auth/register", anon(authHandler.HandleRegister))
	mux.Handle("POST /api/auth/login", RateLimit(d.Limiter, "login", anon(authHandler.HandleLogin)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.HandleLogout)
	mux.Handle("GET /api/auth/me", authed(authHandler.HandleMe))

	mux.Handle("GET /api/account", authed(accountHandler.HandleGet))
	mux.Handle("POST /api/account", authed(accountHandler.HandleUpdate))

	mux.Handle("POST /api/reset_password", RateLimit(d.Limiter, "reset", anon(resetHandler.HandleRequest)))
	mux.Handle("GET /api/reset_password/{token}", anon(resetHandler.HandleVerify))
	mux.Handle("POST /api/reset_password/{token}", anon(resetHandler.HandleReset))

	mux.HandleFunc("GET /api/users/{username}/posts", postHandler.HandleUserPosts)
	mux.Handle("POST /api/posts", authed(postHandler.HandleCreate))

	mux.HandleFunc("GET /avatars/{key...}", avatarHandler.HandleServe)
}
