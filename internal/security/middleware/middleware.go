package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
	"github.com/aryan0dhankhar/landledger/internal/security/ratelimit"
)

type ClaimsContextKey struct{}
type ActorContextKey struct{}

// SessionValidator checks a bearer token against the live sessions
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// ActorLoader resolves the account behind a session
type ActorLoader interface {
	Actor(ctx context.Context, userID string) (*domain.User, error)
}

var publicPaths = map[string]bool{
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
	"/api/auth/logout":   true,
}

// IsPublicPath reports whether path is served without a session
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// BearerToken reads the token from the Authorization header, falling back to the
// token query parameter for websocket upgrades where browsers cannot set headers.
func BearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return auth.ExtractToken(header)
	}
	if strings.HasPrefix(r.URL.Path, "/ws/") {
		if tok := r.URL.Query().Get("token"); tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("missing auth")
}

func JWTMiddleware(sessions SessionValidator, users ActorLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || IsPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := BearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := sessions.Validate(r.Context(), tokenString)
			if err != nil {
				if !errors.Is(err, domain.ErrAuth) {
					log.Error("session lookup failed", slog.String("error", err.Error()))
					writeError(w, http.StatusInternalServerError, "server error")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			actor, err := users.Actor(r.Context(), claims.UserID)
			if err != nil {
				if !errors.Is(err, domain.ErrAuth) {
					log.Error("failed to load session user", slog.String("error", err.Error()))
					writeError(w, http.StatusInternalServerError, "server error")
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			ctx = context.WithValue(ctx, ActorContextKey{}, actor)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits authenticated callers per user and anonymous ones per client IP
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIP(r)
			if actor := GetActorFromContext(r.Context()); actor != nil {
				key = "user:" + actor.ID
			}

			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuditMiddleware records requests that were refused for lack of authentication or rights
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusUnauthorized || rec.status == http.StatusForbidden {
				userID := ""
				if actor := GetActorFromContext(r.Context()); actor != nil {
					userID = actor.ID
				}
				auditLog.LogDenied(r.Context(), userID, fmt.Sprintf("%s %s -> %d", r.Method, r.URL.Path, rec.status))
			}
		})
	}
}

// RequestID tags each request with an id, echoes it in X-Request-ID and logs completion
func RequestID(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = generateRequestID()
			}
			w.Header().Set("X-Request-ID", reqID)

			ctx := audit.WithRequestID(r.Context(), reqID)
			start := time.Now()

			next.ServeHTTP(w, r.WithContext(ctx))

			log.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration_ms", time.Since(start)),
			)
		})
	}
}

// CORS answers preflight requests and sets the allow-origin header for configured origins
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(allowed, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if len(allowed) > 0 {
				w.Header().Set("Access-Control-Allow-Origin", allowed[0])
			}
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ClaimsContextKey{}).(*auth.Claims); ok {
		return c
	}
	return nil
}

func GetActorFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(ActorContextKey{}).(*domain.User); ok {
		return u
	}
	return nil
}

// WithActor stores the acting user in ctx
func WithActor(ctx context.Context, actor *domain.User) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}
