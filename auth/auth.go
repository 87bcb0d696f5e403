package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"blogspace/httpx"
	"blogspace/logging"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is the verified caller of a guarded request.
type Identity struct {
	UID   string
	Name  string
	Email string
}

// DisplayName is what a post records as its author.
func (id Identity) DisplayName() string {
	if id.Name != "" {
		return id.Name
	}
	return id.Email
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HandlerFunc is a handler that runs only for verified callers.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, id Identity)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Require verifies the bearer token of every request before calling next.
// Rejected requests get 401 and never reach next.
func Require(v Verifier, next HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httpx.WriteMessage(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		id, err := v.Verify(r.Context(), token)
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("token rejected")
			httpx.WriteMessage(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		ctx := WithIdentity(r.Context(), id)
		ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithField("uid", id.UID))
		next(w, r.WithContext(ctx), id)
	}
}

func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
