package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/addressbook/pkg/auth"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/StricklySoft/addressbook/pkg/clients/directory"

// maxResponseSize caps directory response bodies at 1 MB. Directory records
// are small; a larger body indicates a misbehaving upstream.
const maxResponseSize = 1 << 20

// lookupByEmailPath is the provider's lookup endpoint. The email is appended
// as a path-escaped segment.
const lookupByEmailPath = "/api/users/by-email/"

// User is a directory record for a registered user.
type User struct {
	// ID is the provider's stable subject identifier for the user.
	ID string `json:"id"`

	// Email is the user's registered email address.
	Email string `json:"email"`

	// Alias is the user's display alias. Populated from the provider's
	// alias field, falling back to its name field.
	Alias string `json:"alias"`
}

// userRecord is the provider's wire format. Some deployments return the
// display alias under "name" instead of "alias".
type userRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

// Client looks up users in the identity provider's directory.
//
// The client is safe for concurrent use. It never retries failed lookups;
// lookups are idempotent, so callers may retry on [sserr.IsRetryable]
// errors if they choose.
type Client struct {
	baseURL    string
	httpClient auth.HTTPClient
	creds      auth.CredentialSource
	tracer     trace.Tracer
}

// NewClient creates a directory client from the given configuration and
// credential source. It returns a *[sserr.Error] with code
// [sserr.CodeValidation] if the configuration is invalid and
// [sserr.CodeInternalConfiguration] if creds is nil.
//
// No connection is established at construction time; the directory is an
// HTTP service and each lookup is an independent request.
func NewClient(cfg Config, creds auth.CredentialSource) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"directory: credential source must not be nil")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		creds:      creds,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// LookupByEmail resolves the directory record for the user registered under
// the given email address.
//
// Error codes:
//   - [sserr.CodeValidationRequired] if email is empty
//   - [sserr.CodeNotFoundUser] if no user is registered under email
//   - [sserr.CodeTimeoutDependency] if the request context deadline expires
//   - [sserr.CodeUnavailableDependency] for transport failures and any
//     other non-2xx provider response
func (c *Client) LookupByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := c.startSpan(ctx, "LookupByEmail")

	if email == "" {
		err := sserr.New(sserr.CodeValidationRequired, "directory: email must not be empty")
		finishSpan(span, err)
		return nil, err
	}

	lookupURL := c.baseURL + lookupByEmailPath + url.PathEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		wrapped := sserr.Wrap(err, sserr.CodeInternal, "directory: failed to build lookup request")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	req.Header.Set("Accept", "application/json")
	if err := c.creds.Apply(req); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := wrapTransportError(err)
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	user, err := decodeLookupResponse(resp)
	finishSpan(span, err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// decodeLookupResponse classifies the provider's response status and parses
// the directory record from a successful body.
func decodeLookupResponse(resp *http.Response) (*User, error) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sserr.New(sserr.CodeNotFoundUser, "directory: no user registered under that email")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, sserr.Newf(sserr.CodeUnavailableDependency,
			"directory: lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"directory: failed to read lookup response")
	}

	var rec userRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"directory: lookup response is not valid JSON")
	}
	if rec.ID == "" || rec.Email == "" {
		return nil, sserr.New(sserr.CodeUnavailableDependency,
			"directory: lookup response is missing id or email")
	}

	alias := rec.Alias
	if alias == "" {
		alias = rec.Name
	}
	return &User{ID: rec.ID, Email: rec.Email, Alias: alias}, nil
}

// wrapTransportError converts an HTTP transport failure to a platform
// [*sserr.Error]. [context.DeadlineExceeded] is classified as
// [sserr.CodeTimeoutDependency] (retryable); everything else, including
// [context.Canceled], as [sserr.CodeUnavailableDependency].
func wrapTransportError(err error) *sserr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutDependency, "directory: lookup timed out")
	}
	return sserr.Wrap(err, sserr.CodeUnavailableDependency, "directory: lookup request failed")
}

// startSpan creates a new OpenTelemetry span with standard HTTP client
// semantic attributes.
func (c *Client) startSpan(ctx context.Context, operationName string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "directory."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("server.address", c.baseURL),
		attribute.String("peer.service", "directory"),
	)
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it. If err is
// nil, the span status is set to OK.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// String returns a human-readable description of the client for logging.
func (c *Client) String() string {
	return fmt.Sprintf("directory.Client(%s)", c.baseURL)
}
