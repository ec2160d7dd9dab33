package auth

import (
	"net/http"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// Header names used on outbound requests to the identity provider.
const (
	// HeaderAuthorization is the standard bearer credential header.
	HeaderAuthorization = "Authorization"

	// HeaderInternalAPIKey carries the static service key when the
	// deployment runs in service-key credential mode.
	HeaderInternalAPIKey = "X-Internal-Api-Key"
)

// BearerPrefix is the exact scheme prefix required on the Authorization
// header. Matching is case-sensitive; "bearer x" or "Token x" is treated
// as an absent credential.
const BearerPrefix = "Bearer "

// CredentialMode selects how the service authenticates its own calls to
// the identity provider.
type CredentialMode string

const (
	// CredentialModeForward replays the calling user's bearer token on
	// outbound provider requests. This is the default: the provider sees
	// the end user's identity, and a caller whose token has been revoked
	// cannot resolve contacts through this service.
	CredentialModeForward CredentialMode = "forward"

	// CredentialModeServiceKey authenticates outbound provider requests
	// with a static internal API key. An explicit opt-in for deployments
	// where the provider's lookup endpoint is not user-scoped.
	CredentialModeServiceKey CredentialMode = "service-key"
)

// String returns the string representation of the credential mode.
func (m CredentialMode) String() string {
	return string(m)
}

// Valid reports whether the credential mode is one of the recognized values.
func (m CredentialMode) Valid() bool {
	switch m {
	case CredentialModeForward, CredentialModeServiceKey:
		return true
	default:
		return false
	}
}

// CredentialSource attaches an outbound credential to a request bound for
// the identity provider. Exactly one source is configured per deployment;
// which one is an explicit policy decision, not an ambient default.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type CredentialSource interface {
	// Apply sets the credential headers on req, drawing any per-request
	// material (such as the caller's own token) from req's context.
	Apply(req *http.Request) error
}

// NewCredentialSource constructs the CredentialSource for the given mode.
// serviceKey is required for [CredentialModeServiceKey] and ignored
// otherwise. An unrecognized mode is a configuration error.
func NewCredentialSource(mode CredentialMode, serviceKey Secret) (CredentialSource, error) {
	switch mode {
	case CredentialModeForward:
		return &ForwardingCredentials{}, nil
	case CredentialModeServiceKey:
		if serviceKey.Value() == "" {
			return nil, sserr.New(sserr.CodeInternalConfiguration,
				"auth: service-key credential mode requires a non-empty key")
		}
		return &ServiceKeyCredentials{key: serviceKey}, nil
	default:
		return nil, sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: unknown credential mode %q", mode)
	}
}

// ForwardingCredentials replays the calling user's bearer token, taken
// from the request context where [Middleware] stored it.
type ForwardingCredentials struct{}

// Apply sets the Authorization header from the bearer token in the
// request context. Returns an authentication error if no token is
// present, which indicates the call was made outside an authenticated
// request path.
func (f *ForwardingCredentials) Apply(req *http.Request) error {
	token, ok := BearerTokenFromContext(req.Context())
	if !ok || token.Value() == "" {
		return sserr.New(sserr.CodeAuthentication,
			"auth: no bearer credential in context to forward")
	}
	req.Header.Set(HeaderAuthorization, BearerPrefix+token.Value())
	return nil
}

// ServiceKeyCredentials authenticates outbound requests with a static
// internal API key.
type ServiceKeyCredentials struct {
	key Secret
}

// Apply sets the internal API key header. Never fails once constructed.
func (s *ServiceKeyCredentials) Apply(req *http.Request) error {
	req.Header.Set(HeaderInternalAPIKey, s.key.Value())
	return nil
}
