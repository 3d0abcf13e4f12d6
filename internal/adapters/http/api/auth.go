package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/plushub/internal/domain/model"
)

// HeaderUserID carries the authenticated user id. Session resolution
// happens upstream.
const HeaderUserID = "X-User-ID"

type userKey struct{}

// WithUser returns ctx carrying the authenticated user id.
func WithUser(ctx context.Context, id model.UserID) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// UserFrom returns the authenticated user id, or zero for anonymous
// requests.
func UserFrom(ctx context.Context) model.UserID {
	id, _ := ctx.Value(userKey{}).(model.UserID)
	return id
}

// AuthMiddleware resolves X-User-ID into the request context. A malformed
// header is rejected; a missing one leaves the request anonymous.
func AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.auth"
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			fail(w, WrapKind(op, ErrUnauthorized, errInvalidUserHeader))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), model.UserID(n))))
	}
}

// requireUser returns the authenticated user or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request, op string) (model.UserID, bool) {
	id := UserFrom(r.Context())
	if !id.Valid() {
		fail(w, NewKind(op, ErrUnauthorized))
		return 0, false
	}
	return id, true
}
