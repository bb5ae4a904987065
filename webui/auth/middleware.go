package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SessionCookieName is the session cookie set after a successful login.
const SessionCookieName = "session_id"

// failedLoginDelay slows brute forcing and masks the hash-comparison timing.
const failedLoginDelay = 1 * time.Second

// Config tunes the middleware. The zero value takes all defaults.
type Config struct {
	SessionTTL    time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
	BlockDuration time.Duration

	// SecureCookies sets the Secure cookie flag; enable behind HTTPS.
	SecureCookies bool
}

// Middleware gates HTTP routes behind a single shared password. It hashes
// the password once at construction and verifies logins against the hash;
// the plaintext is not retained.
type Middleware struct {
	passwordHash string
	sessions     *SessionStore
	limiter      *RateLimiter
	logger       *zap.Logger
	secure       bool
	ttl          time.Duration
}

// NewMiddleware builds the middleware with default configuration.
func NewMiddleware(password string, logger *zap.Logger) (*Middleware, error) {
	return NewMiddlewareWithConfig(password, logger, Config{})
}

// NewMiddlewareWithConfig builds the middleware with explicit limits.
func NewMiddlewareWithConfig(password string, logger *zap.Logger, cfg Config) (*Middleware, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &Middleware{
		passwordHash: hash,
		sessions:     NewSessionStore(ttl),
		limiter:      NewRateLimiter(cfg.MaxAttempts, cfg.AttemptWindow, cfg.BlockDuration),
		logger:       logger,
		secure:       cfg.SecureCookies,
		ttl:          ttl,
	}, nil
}

// Middleware wraps next so only requests with a valid session pass. Browser
// page loads are redirected to /login; API calls get a bare 401.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.validSession(r) {
			next.ServeHTTP(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// LoginHandler serves the login form (GET) and processes submissions (POST).
func (m *Middleware) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if m.validSession(r) {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			renderLoginPage(w, r.URL.Query().Get("error"))
		case http.MethodPost:
			m.handleLoginPost(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (m *Middleware) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if allowed, remaining := m.limiter.Allow(ip); !allowed {
		m.logger.Warn("login rate limit exceeded",
			zap.String("ip", ip),
			zap.Duration("remaining", remaining),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if err := VerifyPassword(password, m.passwordHash); err != nil {
		m.limiter.RecordFailure(ip)
		m.logger.Info("login failed",
			zap.String("ip", ip),
			zap.Int("attempts", m.limiter.Attempts(ip)),
		)
		time.Sleep(failedLoginDelay)
		http.Redirect(w, r, "/login?error=Invalid+password", http.StatusSeeOther)
		return
	}

	session, err := m.sessions.Create()
	if err != nil {
		m.logger.Error("session creation failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	m.limiter.Reset(ip)

	http.SetCookie(w, m.sessionCookie(session.ID, int(m.ttl.Seconds())))
	m.logger.Info("login succeeded", zap.String("ip", ip))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler destroys the session and clears the cookie. Idempotent: a
// request without a session still redirects to the login page.
func (m *Middleware) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			m.sessions.Delete(cookie.Value)
		}
		http.SetCookie(w, m.sessionCookie("", -1))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// Sessions exposes the store for cleanup ticker wiring.
func (m *Middleware) Sessions() *SessionStore {
	return m.sessions
}

// Limiter exposes the rate limiter for cleanup ticker wiring.
func (m *Middleware) Limiter() *RateLimiter {
	return m.limiter
}

func (m *Middleware) validSession(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	_, err = m.sessions.Get(cookie.Value)
	return err == nil
}

func (m *Middleware) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// clientIP resolves the request's client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
