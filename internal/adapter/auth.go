package adapter

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// StaticAuthenticator implements Authenticator against a fixed token table
// loaded from configuration. Token comparison is constant-time.
type StaticAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]UserIdentity
}

// NewStaticAuthenticator creates a StaticAuthenticator from a token → user
// id mapping.
func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	table := make(map[string]UserIdentity, len(tokens))
	for token, userID := range tokens {
		table[token] = UserIdentity{UserID: userID}
	}
	return &StaticAuthenticator{tokens: table}
}

// Authenticate resolves a bearer token to its identity. Unknown or empty
// tokens fail with AUTHENTICATION_ERROR.
func (a *StaticAuthenticator) Authenticate(ctx context.Context, token string) (*UserIdentity, error) {
	if token == "" {
		return nil, types.NewError(types.AUTHENTICATION_ERROR, "missing authentication token")
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for candidate, identity := range a.tokens {
		if len(candidate) == len(token) &&
			subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			id := identity
			return &id, nil
		}
	}

	return nil, types.NewError(types.AUTHENTICATION_ERROR, "invalid authentication token")
}
