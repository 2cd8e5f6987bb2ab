package httpapi

import (
	"context"
	"net/http"
	"strings"

	"investment-ledger-go/internal/api"
	"investment-ledger-go/internal/models"
)

const (
	headerUserId   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type actorKey struct{}

// requireIdentity reads the caller set by the auth proxy. Requests without a
// user id never reach a handler.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserId))
		if id == "" {
			writeProblem(w, http.StatusUnauthorized, api.CodeUnauthorized, "missing caller identity")
			return
		}

		role := models.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))))
		switch role {
		case "":
			role = models.RoleUser
		case models.RoleUser, models.RoleAdmin:
		default:
			writeProblem(w, http.StatusUnauthorized, api.CodeUnauthorized, "unknown role")
			return
		}

		actor := models.Actor{Id: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func requireAdminRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, api.CodeUnauthorized, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(r *http.Request) models.Actor {
	actor, _ := r.Context().Value(actorKey{}).(models.Actor)
	return actor
}
