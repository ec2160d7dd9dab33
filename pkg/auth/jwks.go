package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// keySetCache caches the identity provider's public signing keys, fetched
// from the JWKS URL discovered at startup. Keys are served from an
// in-memory snapshot guarded by an RWMutex; a miss (first use, expired
// snapshot, or an unknown kid after key rotation) triggers a refetch of
// the full set.
//
// Concurrent misses are collapsed: fetchMu serializes refetches, and each
// waiter re-checks the snapshot before fetching so only the first waiter
// actually hits the network.
type keySetCache struct {
	jwksURL string
	ttl     time.Duration
	client  HTTPClient

	mu        sync.RWMutex
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time

	fetchMu sync.Mutex
}

// newKeySetCache creates a key set cache bound to the given JWKS URL.
func newKeySetCache(jwksURL string, ttl time.Duration, client HTTPClient) *keySetCache {
	return &keySetCache{
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  client,
	}
}

// getKey returns the public key for the given key ID. The cached snapshot
// is consulted first; on a miss the full key set is refetched to pick up
// rotated keys. A kid still absent after a fresh fetch yields an error
// with code [sserr.CodeAuthenticationUnknownKey] so the token is rejected
// rather than the service treating the miss as fatal.
func (c *keySetCache) getKey(ctx context.Context, kid string) (any, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	// Single-flight: one goroutine refetches; the rest wait here and then
	// re-check the snapshot the winner installed.
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeUnavailableDependency,
			"auth: failed to fetch key set from %s", c.jwksURL)
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, sserr.Newf(sserr.CodeAuthenticationUnknownKey,
			"auth: key ID %q not present in provider key set", kid)
	}
	return key, nil
}

// warm ensures a fresh key set snapshot is installed, fetching one if
// the current snapshot is missing or stale. Used for readiness checks.
func (c *keySetCache) warm(ctx context.Context) error {
	c.mu.RLock()
	fresh := c.keys != nil && time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.mu.RLock()
	fresh = c.keys != nil && time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeUnavailableDependency,
			"auth: failed to fetch key set from %s", c.jwksURL)
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

// lookup returns the key for kid from the current snapshot, if the
// snapshot is fresh and contains it.
func (c *keySetCache) lookup(kid string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.keys == nil || time.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	key, ok := c.keys[kid]
	return key, ok
}

// jwksResponse represents the JSON structure of a JWKS endpoint response.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single key in a JWKS response. Only the fields
// needed for RSA and EC key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetch makes an HTTP GET request to the JWKS URL, parses the response,
// and constructs a map of key ID to public key. Supports RSA and ECDSA
// (P-256, P-384, P-521) key types.
//
// The response body is limited to 1 MB to prevent resource exhaustion.
func (c *keySetCache) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create key set request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: key set request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read key set response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("auth: failed to parse key set JSON: %w", err)
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
