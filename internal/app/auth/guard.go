package auth

import (
	"context"
	"errors"

	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/storage"
	apperrors "github.com/CalcStack/calc_service/internal/errors"
)

// Guard converts a bearer token into a live principal. It is the single
// mandatory gate in front of every protected operation; failures close the
// request.
type Guard struct {
	tokens     *TokenService
	principals storage.PrincipalStore
}

// NewGuard constructs a guard over the given token service and identity
// store.
func NewGuard(tokens *TokenService, principals storage.PrincipalStore) *Guard {
	return &Guard{tokens: tokens, principals: principals}
}

// Authenticate verifies the token and resolves its subject to a stored
// principal. Token failures propagate unchanged; a verified subject that no
// longer exists (deleted after issue) fails with PrincipalNotFound.
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (principal.Principal, error) {
	handle, err := g.tokens.Verify(rawToken)
	if err != nil {
		return principal.Principal{}, err
	}

	p, err := g.principals.GetPrincipalByUsername(ctx, handle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return principal.Principal{}, apperrors.PrincipalNotFound(handle)
		}
		return principal.Principal{}, apperrors.Internal("resolve principal", err)
	}
	return p, nil
}
