// Package auth implements the bearer-token verification pipeline for the
// StricklySoft address book service.
//
// The pipeline has four stages, wired together at startup:
//
//  1. [Discover] fetches the identity provider's metadata document and
//     returns its signing policy ([ProviderMetadata]).
//  2. [ProviderMetadata.EnforceAlgorithm] asserts the provider signs
//     tokens with the algorithm this service requires (RS256). A provider
//     that cannot satisfy the policy prevents the service from starting.
//  3. [Verifier] validates bearer tokens per request against the
//     provider's rotating key set and produces an [Identity].
//  4. [Middleware] gates every protected route, attaching the verified
//     Identity and the raw bearer credential to the request context.
//
// Security:
//
// Tokens are never trusted before signature verification. The verifier
// accepts only the provider-advertised asymmetric algorithm; HMAC and
// "none" tokens are rejected structurally, closing algorithm confusion
// attacks. Authentication failures surface to clients as a generic 401
// while the specific rejection reason is logged server-side.
package auth

import (
	"context"
	"errors"
)

// Identity represents a user whose bearer token passed verification.
// Only the [Verifier] constructs an Identity; holding one is proof that
// the request presented a valid credential.
//
// Identity is immutable after creation and safe for concurrent use.
type Identity struct {
	id     string
	email  string
	alias  string
	claims map[string]any
}

// NewIdentity creates an Identity from verified token claims. The claims
// map is defensively copied to prevent external mutation.
//
// Returns an error if id, email, or alias is empty; the verifier treats
// that as a missing-claims rejection.
func NewIdentity(id, email, alias string, claims map[string]any) (*Identity, error) {
	if id == "" {
		return nil, errors.New("auth: identity id must not be empty")
	}
	if email == "" {
		return nil, errors.New("auth: identity email must not be empty")
	}
	if alias == "" {
		return nil, errors.New("auth: identity alias must not be empty")
	}
	copied := make(map[string]any, len(claims))
	for k, v := range claims {
		copied[k] = v
	}
	return &Identity{
		id:     id,
		email:  email,
		alias:  alias,
		claims: copied,
	}, nil
}

// ID returns the stable subject identifier assigned by the identity
// provider (the token's "sub" claim).
func (i *Identity) ID() string { return i.id }

// Email returns the user's email address.
func (i *Identity) Email() string { return i.email }

// Alias returns the user's display alias.
func (i *Identity) Alias() string { return i.alias }

// Claims returns a shallow copy of the verified token claims. Each call
// returns a new map, so callers may safely modify the result without
// affecting the identity or other callers.
func (i *Identity) Claims() map[string]any {
	copied := make(map[string]any, len(i.claims))
	for k, v := range i.claims {
		copied[k] = v
	}
	return copied
}

// TokenValidator validates bearer tokens and extracts the identity they
// represent. Implementations are responsible for verifying token
// signatures, expiration, and required claims.
//
// This interface is what [Middleware] consumes; tests substitute a stub
// validator so HTTP behavior can be exercised without real tokens.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type TokenValidator interface {
	// Validate verifies the given token string and returns the Identity
	// it represents. Returns an error if the token is invalid, expired,
	// or cannot be verified.
	//
	// The context may carry deadlines, cancellation signals, and tracing
	// information that validators should respect.
	Validate(ctx context.Context, token string) (*Identity, error)
}
