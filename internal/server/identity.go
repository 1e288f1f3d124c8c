package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/heartmatch/core/internal/apperr"
)

// AccountResolver is the boundary to the external account/profile service:
// it resolves the authenticated actor for a request. The core never keeps an
// ambient "current user"; identity is resolved once per request and passed
// explicitly from there on.
type AccountResolver interface {
	CurrentUserID(r *http.Request) (uint64, error)
}

// HeaderResolver resolves the actor from the X-User-ID header. It stands in
// for a real session-validating resolver, which the account service provides
// in front of this core.
type HeaderResolver struct{}

func (HeaderResolver) CurrentUserID(r *http.Request) (uint64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		// browser WebSocket clients cannot set headers
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return 0, apperr.ErrAuthenticationRequired
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.ErrAuthenticationRequired
	}
	return id, nil
}

type ctxKey int

const actorKey ctxKey = iota

// WithActor installs the resolved actor id on the request context.
func WithActor(ctx context.Context, actorID uint64) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFrom extracts the actor id resolved by the identity middleware.
func ActorFrom(ctx context.Context) (uint64, error) {
	id, ok := ctx.Value(actorKey).(uint64)
	if !ok || id == 0 {
		return 0, apperr.ErrAuthenticationRequired
	}
	return id, nil
}

// Identity builds the middleware that resolves the actor for every request.
// Requests with no resolvable actor are rejected before any handler runs.
func Identity(resolver AccountResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, err := resolver.CurrentUserID(r)
			if err != nil {
				apperr.WriteJSON(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
		})
	}
}
