// Package directory provides the client for the identity provider's user
// directory. The address book service resolves contacts by email through
// this client before persisting them.
//
// # Configuration
//
// Create a client using [NewClient] with a [Config] and the deployment's
// credential source:
//
//	cfg := directory.DefaultConfig()
//	cfg.BaseURL = "https://id.stricklysoft.io"
//	creds, _ := auth.NewCredentialSource(auth.CredentialModeForward, "")
//	client, err := directory.NewClient(cfg, creds)
//
// # Credentials
//
// Every outbound request carries the credential produced by the configured
// [auth.CredentialSource]: either the calling user's own bearer token
// (forward mode) or a static internal API key (service-key mode). The
// client itself is credential-agnostic.
//
// # Retries
//
// Lookups are read-only and idempotent but the client never retries on its
// own; upstream failures are classified and surfaced so callers can decide.
package directory

import (
	"net/url"
	"time"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"

	"github.com/StricklySoft/addressbook/pkg/auth"
)

// DefaultTimeout is the per-request timeout applied when the config does
// not specify one. Directory lookups sit on the interactive add-contact
// path, so the budget is short.
const DefaultTimeout = 10 * time.Second

// Config holds the directory client configuration.
type Config struct {
	// BaseURL is the identity provider's base URL (e.g.,
	// "https://id.stricklysoft.io"). Lookup paths are appended to it.
	// Required.
	BaseURL string `json:"base_url" yaml:"base_url" env:"DIRECTORY_BASE_URL" required:"true"`

	// Timeout is the per-request timeout for directory lookups. Applied
	// to the default HTTP client; ignored when HTTPClient is provided.
	// Defaults to 10 seconds.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"DIRECTORY_TIMEOUT" envDefault:"10s"`

	// HTTPClient overrides the HTTP client used for lookups. If nil, a
	// default client with Timeout is used.
	HTTPClient auth.HTTPClient `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with default values. BaseURL must still
// be set by the caller.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
	}
}

// Validate checks the configuration for logical correctness and returns
// a *[sserr.Error] with code [sserr.CodeValidation] if any field is invalid.
func (c *Config) Validate() *sserr.Error {
	if c.BaseURL == "" {
		return sserr.New(sserr.CodeValidation, "directory: base URL must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return sserr.Newf(sserr.CodeValidation,
			"directory: base URL %q must be an absolute http(s) URL", c.BaseURL)
	}
	if c.Timeout < 0 {
		return sserr.New(sserr.CodeValidation, "directory: timeout must be non-negative")
	}
	return nil
}
