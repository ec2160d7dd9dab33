package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// AlgorithmRS256 is the signing algorithm this service requires the
// identity provider to support. Tokens signed with any other algorithm
// are rejected.
const AlgorithmRS256 = "RS256"

// HTTPClient abstracts the HTTP client used for fetching provider metadata
// and key sets. This allows callers to provide custom HTTP clients with
// specific timeouts, transport settings, or middleware.
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderMetadata is the subset of the identity provider's discovery
// document that the service depends on. It is fetched once at startup by
// [Discover] and treated as immutable for the process lifetime.
type ProviderMetadata struct {
	// Issuer is the provider's issuer identifier. Verified tokens must
	// carry this value in their "iss" claim.
	Issuer string `json:"issuer"`

	// JWKSURI is the endpoint serving the provider's current public
	// signing keys. The key set cache fetches from this URL.
	JWKSURI string `json:"jwks_uri"`

	// SigningAlgorithms lists the token signing algorithms the provider
	// supports, from the id_token_signing_alg_values_supported field.
	SigningAlgorithms []string `json:"id_token_signing_alg_values_supported"`
}

// Discover fetches the identity provider's discovery document from
// {issuerURL}/.well-known/openid-configuration and returns the parsed
// metadata.
//
// A transport failure or non-200 response returns an error with code
// [sserr.CodeUnavailableDependency]; a document missing the jwks_uri or
// signing-algorithm fields, or whose issuer does not match issuerURL,
// returns [sserr.CodeInternalConfiguration]. Either way the caller is
// expected to abort startup: the service must not serve requests it
// cannot verify.
func Discover(ctx context.Context, issuerURL string, client HTTPClient) (*ProviderMetadata, error) {
	if issuerURL == "" {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"auth: issuer URL must not be empty")
	}
	if client == nil {
		client = http.DefaultClient
	}

	discoveryURL := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"auth: failed to create discovery request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeUnavailableDependency,
			"auth: discovery request to %s failed", discoveryURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sserr.Newf(sserr.CodeUnavailableDependency,
			"auth: discovery endpoint returned status %d", resp.StatusCode)
	}

	// Limit response body to 1 MB.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"auth: failed to read discovery response")
	}

	var meta ProviderMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"auth: failed to parse discovery document")
	}

	if meta.JWKSURI == "" {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"auth: discovery document missing jwks_uri")
	}
	if len(meta.SigningAlgorithms) == 0 {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"auth: discovery document missing id_token_signing_alg_values_supported")
	}
	if meta.Issuer != "" && strings.TrimRight(meta.Issuer, "/") != strings.TrimRight(issuerURL, "/") {
		return nil, sserr.Newf(sserr.CodeInternalConfiguration,
			"auth: discovery document issuer %q does not match configured issuer %q",
			meta.Issuer, issuerURL)
	}
	if meta.Issuer == "" {
		meta.Issuer = issuerURL
	}

	return &meta, nil
}

// EnforceAlgorithm asserts that the provider advertises support for the
// given signing algorithm. Returns nil when the algorithm is present in
// SigningAlgorithms, or an error with code
// [sserr.CodeInternalConfiguration] otherwise.
//
// A provider that cannot sign with the service's required algorithm would
// make every token unverifiable, so callers treat this error as fatal at
// startup.
func (m *ProviderMetadata) EnforceAlgorithm(alg string) error {
	for _, supported := range m.SigningAlgorithms {
		if supported == alg {
			return nil
		}
	}
	return sserr.Newf(sserr.CodeInternalConfiguration,
		"auth: provider signing algorithms %v do not include required %q",
		m.SigningAlgorithms, alg)
}
