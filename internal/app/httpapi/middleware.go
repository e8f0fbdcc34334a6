package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/CalcStack/calc_service/internal/app/auth"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	apperrors "github.com/CalcStack/calc_service/internal/errors"
)

type contextKey string

const principalContextKey contextKey = "principal"

// authMiddleware resolves the bearer token to a principal and stores it in
// the request context. Requests without a valid token never reach the
// protected handlers.
func authMiddleware(guard *auth.Guard) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeServiceError(w, apperrors.Unauthorized("missing bearer token"))
				return
			}

			p, err := guard.Authenticate(r.Context(), token)
			if err != nil {
				writeServiceError(w, err)
				return
			}

			if slot, ok := r.Context().Value(auditActorKey).(*auditActor); ok {
				slot.set(p.Username)
			}

			ctx := context.WithValue(r.Context(), principalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// principalFrom extracts the authenticated principal stored by
// authMiddleware.
func principalFrom(ctx context.Context) (principal.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(principal.Principal)
	return p, ok
}
