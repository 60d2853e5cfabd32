package utils

import (
	"context"
	"net/http"
	"strings"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/json"
)

// Headers set by the upstream session gateway.
const (
	HeaderLogin       = "X-Visper-Login"
	HeaderUserID      = "X-Visper-User-Id"
	HeaderDisplayName = "X-Visper-Display-Name"
	HeaderAvatar      = "X-Visper-Avatar"
)

type identityKey struct{}

// IdentityFromRequest builds the caller identity from gateway headers and
// returns a context carrying it plus the bearer token, if any.
func IdentityFromRequest(r *http.Request) (domain.Identity, context.Context, error) {
	id, err := domain.NewIdentity(
		r.Header.Get(HeaderUserID),
		r.Header.Get(HeaderLogin),
		r.Header.Get(HeaderDisplayName),
		r.Header.Get(HeaderAvatar),
	)
	if err != nil {
		return domain.Identity{}, nil, err
	}

	ctx := context.WithValue(r.Context(), identityKey{}, id)
	if token := BearerToken(r); token != "" {
		ctx = blobstore.WithCredential(ctx, token)
	}
	return id, ctx, nil
}

func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}

// Caller returns the authenticated identity or writes a 401.
func Caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		json.WriteUnauthorizedError(w, "Missing or invalid authentication")
	}
	return id, ok
}
