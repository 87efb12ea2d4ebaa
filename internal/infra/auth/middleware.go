package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/xdr-console/internal/domain"
	"go.uber.org/zap"
)

// SessionGate — то, что проверка доступа должна знать о текущей сессии.
// Реализуется session.Session.
type SessionGate interface {
	IsAuthenticated() bool
	IsAnalyst() bool
	IsAdmin() bool
	Role() domain.Role
}

type roleKey struct{}

// RoleFromContext возвращает роль, которую положил Middleware.
func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	role, ok := ctx.Value(roleKey{}).(domain.Role)
	return role, ok
}

// NewMiddleware пропускает запрос только при живой сессии.
func NewMiddleware(g SessionGate, logger *zap.Logger) func(http.Handler) http.Handler {
	return gate(g, logger, "authenticated", func(SessionGate) bool { return true })
}

// RequireAnalyst — admin или analyst.
func RequireAnalyst(g SessionGate, logger *zap.Logger) func(http.Handler) http.Handler {
	return gate(g, logger, "analyst", SessionGate.IsAnalyst)
}

func RequireAdmin(g SessionGate, logger *zap.Logger) func(http.Handler) http.Handler {
	return gate(g, logger, "admin", SessionGate.IsAdmin)
}

func gate(g SessionGate, logger *zap.Logger, need string, allowed func(SessionGate) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.IsAuthenticated() {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !allowed(g) {
				logger.Warn("access denied",
					zap.String("path", r.URL.Path),
					zap.String("need", need),
					zap.String("role", string(g.Role())))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			// Прокидываем роль в контекст
			ctx := context.WithValue(r.Context(), roleKey{}, g.Role())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
