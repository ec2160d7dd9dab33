package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., setting an outbound Authorization header).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// ---------------------------------------------------------------------------
// VerifierConfig — configuration for the token verifier
// ---------------------------------------------------------------------------

// VerifierConfig holds the configuration for [Verifier]. It controls the
// trusted issuer, audience validation, caching behavior, and clock skew
// tolerance.
type VerifierConfig struct {
	// IssuerURL is the base URL of the identity provider (e.g.,
	// "https://id.stricklysoft.io"). Discovery, key fetching, and the
	// token "iss" claim are all validated against this value. Required.
	IssuerURL string `json:"issuer_url" yaml:"issuer_url" env:"ISSUER_URL" required:"true"`

	// Audience is the expected "aud" claim in tokens. If empty, the
	// audience claim is not validated. This field is optional.
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty" env:"AUDIENCE"`

	// TokenCacheTTL is the maximum time a verified token identity is
	// cached before re-verification is required. The actual cache TTL for
	// a token is the minimum of this value and the token's remaining
	// lifetime (exp - now). Must be non-negative. Defaults to 5 minutes.
	TokenCacheTTL time.Duration `json:"token_cache_ttl" yaml:"token_cache_ttl" env:"TOKEN_CACHE_TTL" envDefault:"5m"`

	// TokenCacheMaxSize is the maximum number of entries in the token
	// cache. When the cache is full, expired entries are evicted first,
	// then the oldest entries are removed. Must be greater than zero.
	// Defaults to 10000.
	TokenCacheMaxSize int `json:"token_cache_max_size" yaml:"token_cache_max_size" env:"TOKEN_CACHE_MAX_SIZE" envDefault:"10000"`

	// KeyCacheTTL is the time a fetched key set is considered fresh before
	// the next key lookup refetches it. An unknown kid always triggers a
	// refetch regardless of freshness, to pick up rotated keys. Must be
	// non-negative. Defaults to 1 hour.
	KeyCacheTTL time.Duration `json:"key_cache_ttl" yaml:"key_cache_ttl" env:"KEY_CACHE_TTL" envDefault:"1h"`

	// ClockSkew is the maximum allowed clock difference between this
	// service and the identity provider. Tokens within this window of
	// their expiration or not-before times are still considered valid.
	// Must be non-negative. Defaults to 30 seconds.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"30s"`

	// HTTPClient is the HTTP client used for fetching the provider's key
	// set. If nil, a default [http.Client] with a 10-second timeout is
	// used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`
}

// maxTokenSize is the maximum accepted size for a bearer token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Validate checks the configuration for logical correctness and returns
// a *[sserr.Error] with code [sserr.CodeValidation] if any field is invalid.
func (c *VerifierConfig) Validate() *sserr.Error {
	if c.IssuerURL == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer URL must not be empty")
	}
	if c.TokenCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: token cache TTL must be non-negative")
	}
	if c.KeyCacheTTL < 0 {
		return sserr.New(sserr.CodeValidation, "auth: key cache TTL must be non-negative")
	}
	if c.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidation, "auth: clock skew must be non-negative")
	}
	if c.TokenCacheMaxSize <= 0 {
		return sserr.New(sserr.CodeValidation, "auth: token cache max size must be greater than zero")
	}
	return nil
}

// DefaultVerifierConfig returns a VerifierConfig with sensible defaults.
// IssuerURL must still be set by the caller.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		TokenCacheTTL:     5 * time.Minute,
		TokenCacheMaxSize: 10000,
		KeyCacheTTL:       1 * time.Hour,
		ClockSkew:         30 * time.Second,
	}
}

// ---------------------------------------------------------------------------
// tokenCache — in-memory cache for verified token identities
// ---------------------------------------------------------------------------

// tokenCacheEntry stores a cached identity and its expiration time.
type tokenCacheEntry struct {
	identity  *Identity
	expiresAt time.Time
}

// tokenCache provides an in-memory cache for verified token identities,
// keyed by the SHA-256 hash of the token string. This avoids re-parsing
// and re-verifying tokens on every request.
type tokenCache struct {
	mu      sync.RWMutex
	entries map[string]*tokenCacheEntry
	maxSize int
	ttl     time.Duration
}

// newTokenCache creates a new token cache with the given TTL and maximum
// number of entries.
func newTokenCache(ttl time.Duration, maxSize int) *tokenCache {
	return &tokenCache{
		entries: make(map[string]*tokenCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// get retrieves a cached identity by token hash. Returns the identity and
// true if the entry exists and has not expired, or nil and false otherwise.
func (c *tokenCache) get(tokenHash string) (*Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[tokenHash]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.identity, true
}

// put stores a verified identity in the cache. The effective cache TTL is
// the minimum of the configured TTL and the time remaining until the
// token's expiration (tokenExp), so a cached identity can never outlive
// its token. If the cache is at capacity, expired entries are evicted
// first; if still at capacity, the oldest entry is removed.
func (c *tokenCache) put(tokenHash string, identity *Identity, tokenExp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.ttl
	remaining := time.Until(tokenExp)
	if remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return // Token already expired; do not cache.
	}

	expiresAt := time.Now().Add(ttl)

	// Evict if at capacity.
	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}
	if len(c.entries) >= c.maxSize {
		// Evict the oldest entry (earliest expiresAt).
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.expiresAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.expiresAt
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[tokenHash] = &tokenCacheEntry{
		identity:  identity,
		expiresAt: expiresAt,
	}
}

// evictExpiredLocked removes all expired entries. Caller must hold the
// write lock.
func (c *tokenCache) evictExpiredLocked() {
	now := time.Now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// ---------------------------------------------------------------------------
// Verifier — bearer-token verification with caching and OTel tracing
// ---------------------------------------------------------------------------

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/StricklySoft/addressbook/pkg/auth"

// Verifier validates bearer tokens issued by the identity provider whose
// metadata was discovered at startup. Signatures are verified against the
// provider's rotating key set; verified identities are cached by token
// hash. Verifier implements the [TokenValidator] interface.
//
// Verifier is safe for concurrent use by multiple goroutines.
type Verifier struct {
	config     VerifierConfig
	issuer     string
	tracer     trace.Tracer
	tokenCache *tokenCache
	keys       *keySetCache
}

// Compile-time assertion that Verifier implements TokenValidator.
var _ TokenValidator = (*Verifier)(nil)

// NewVerifier creates a Verifier from a validated configuration and the
// provider metadata returned by [Discover]. Callers must run
// [ProviderMetadata.EnforceAlgorithm] before constructing a verifier;
// NewVerifier re-checks the policy and refuses metadata that does not
// advertise RS256.
func NewVerifier(cfg VerifierConfig, meta *ProviderMetadata) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if meta == nil || meta.JWKSURI == "" {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"auth: provider metadata with a jwks_uri is required")
	}
	if err := meta.EnforceAlgorithm(AlgorithmRS256); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Verifier{
		config:     cfg,
		issuer:     meta.Issuer,
		tracer:     otel.Tracer(tracerName),
		tokenCache: newTokenCache(cfg.TokenCacheTTL, cfg.TokenCacheMaxSize),
		keys:       newKeySetCache(meta.JWKSURI, cfg.KeyCacheTTL, httpClient),
	}, nil
}

// Health reports whether the verifier can serve verifications: the
// provider's key set must be fetchable. A fresh cached snapshot
// satisfies the check without a network round trip.
func (v *Verifier) Health(ctx context.Context) error {
	return v.keys.warm(ctx)
}

// Validate verifies the given bearer token string and returns the Identity
// it represents. Checks are ordered so each failure short-circuits before
// later, more expensive work:
//
//  1. Empty or oversized tokens are rejected
//  2. The in-memory token cache is consulted
//  3. The token is parsed; unparseable input is malformed
//  4. The signing key is resolved by kid, refetching on rotation
//  5. The RS256 signature is verified (HMAC and "none" rejected)
//  6. Expiry and not-before are checked with clock skew tolerance
//  7. Required identity claims (sub, email, alias) are extracted
//
// Returns a *[sserr.Error] with the code for the specific short-circuit
// on failure; callers present a generic message and log the code.
func (v *Verifier) Validate(ctx context.Context, tokenStr string) (*Identity, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.Validate")
	defer span.End()

	if tokenStr == "" {
		err := sserr.New(sserr.CodeAuthenticationMalformed, "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := sserr.New(sserr.CodeAuthenticationMalformed, "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	// Compute cache key (SHA-256 hash of token).
	hash := tokenHash(tokenStr)

	if identity, ok := v.tokenCache.get(hash); ok {
		span.SetAttributes(attribute.Bool("auth.cache_hit", true))
		return identity, nil
	}
	span.SetAttributes(attribute.Bool("auth.cache_hit", false))

	// Parse without verification to inspect the header before any key
	// lookup. An unparseable token never reaches the network.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		parseErr := sserr.New(sserr.CodeAuthenticationMalformed, "auth: token is malformed")
		finishSpan(span, parseErr)
		return nil, parseErr
	}

	// Reject alg:none — critical security check. WithValidMethods below
	// would also reject it, but an explicit check keeps the failure out
	// of the signature path.
	algStr, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(algStr, "none") {
		err := sserr.New(sserr.CodeAuthenticationMalformed, "auth: algorithm 'none' is not permitted")
		finishSpan(span, err)
		return nil, err
	}

	identity, exp, err := v.verify(ctx, tokenStr)
	if err != nil {
		classified := classifyError(err)
		finishSpan(span, classified)
		return nil, classified
	}

	// Cache the verified identity using the token's exp claim.
	if !exp.IsZero() {
		v.tokenCache.put(hash, identity, exp)
	}

	span.SetAttributes(attribute.String("auth.identity_id", identity.ID()))
	return identity, nil
}

// verify performs signature and claims verification and builds the
// Identity. Returns the identity and the token's expiration time for
// cache-lifetime capping.
func (v *Verifier) verify(ctx context.Context, tokenStr string) (*Identity, time.Time, error) {
	parserOpts := []jwt.ParserOption{
		// CRITICAL: restrict accepted algorithms to RS256 only, preventing
		// algorithm confusion attacks where an attacker presents an
		// HMAC-signed token hoping the RSA public key is used as the
		// HMAC secret.
		jwt.WithValidMethods([]string{AlgorithmRS256}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.config.ClockSkew),
	}
	if v.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.config.Audience))
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, sserr.New(sserr.CodeAuthenticationMalformed, "auth: token header missing kid")
		}
		return v.keys.getKey(ctx, kid)
	}, parserOpts...)
	if err != nil {
		return nil, time.Time{}, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, time.Time{}, sserr.New(sserr.CodeAuthenticationInvalid, "auth: invalid token claims")
	}

	claims := mapClaimsToMap(mc)

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, time.Time{}, sserr.New(sserr.CodeAuthenticationClaims,
			"auth: token missing required sub claim")
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, time.Time{}, sserr.New(sserr.CodeAuthenticationClaims,
			"auth: token missing required email claim")
	}
	// The provider issues the display alias under "alias"; "name" is the
	// agreed equivalent for tenants on the older claim schema.
	alias, _ := claims["alias"].(string)
	if alias == "" {
		alias, _ = claims["name"].(string)
	}
	if alias == "" {
		return nil, time.Time{}, sserr.New(sserr.CodeAuthenticationClaims,
			"auth: token missing required alias claim")
	}

	identity, err := NewIdentity(sub, email, alias, claims)
	if err != nil {
		return nil, time.Time{}, sserr.Wrap(err, sserr.CodeAuthenticationClaims,
			"auth: failed to build identity from token claims")
	}

	var expTime time.Time
	if exp, expErr := mc.GetExpirationTime(); expErr == nil && exp != nil {
		expTime = exp.Time
	}
	return identity, expTime, nil
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// tokenHash computes the SHA-256 hash of a token string and returns it
// as a hex-encoded string. This is used as the cache key to avoid storing
// raw tokens in memory.
func tokenHash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// mapClaimsToMap converts jwt.MapClaims to a plain map[string]any.
// This allows the claims to be passed to functions that expect a plain map
// without carrying the jwt.MapClaims type.
func mapClaimsToMap(mc jwt.MapClaims) map[string]any {
	result := make(map[string]any, len(mc))
	for k, v := range mc {
		result[k] = v
	}
	return result
}

// classifyError converts a JWT library error or other error to an
// appropriate *sserr.Error with the correct error code. If the error
// is already an *sserr.Error (e.g., an unknown-key rejection from the
// key set cache), it is returned as-is.
func classifyError(err error) *sserr.Error {
	if err == nil {
		return nil
	}

	var ssError *sserr.Error
	if errors.As(err, &ssError) {
		return ssError
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token has expired")
	}
	if errors.Is(err, jwt.ErrTokenNotValidYet) {
		return sserr.Wrap(err, sserr.CodeAuthenticationExpired, "auth: token is not yet valid")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return sserr.Wrap(err, sserr.CodeAuthenticationMalformed, "auth: token is malformed")
	}
	if errors.Is(err, jwt.ErrSignatureInvalid) {
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token is unverifiable")
	}
	if errors.Is(err, jwt.ErrTokenInvalidAudience) {
		return sserr.Wrap(err, sserr.CodeAuthenticationClaims, "auth: token audience is invalid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		return sserr.Wrap(err, sserr.CodeAuthenticationClaims, "auth: token issuer is invalid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidClaims) {
		return sserr.Wrap(err, sserr.CodeAuthenticationClaims, "auth: token claims are invalid")
	}

	return sserr.Wrap(err, sserr.CodeAuthenticationInvalid, "auth: token verification failed")
}

// startSpan creates a new OpenTelemetry span with the given name. Returns
// the updated context and span.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error. This is a helper for consistent error recording
// across verification paths.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
