package addressbook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/StricklySoft/addressbook/pkg/auth"
	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// HeaderRequestID carries the per-request correlation id. An inbound
// value is trusted and echoed back; otherwise one is generated.
const HeaderRequestID = "X-Request-Id"

// maxRequestBodySize caps add-contact request bodies. The body is a
// single email field; anything near the cap is not a legitimate request.
const maxRequestBodySize = 64 << 10

// Handler serves the address book HTTP API. Every route requires a
// verified identity in the request context, so the handler is mounted
// behind [auth.Middleware].
type Handler struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler for the address book API. A nil
// logger falls back to [slog.Default].
func NewHandler(resolver *Resolver, logger *slog.Logger) (*Handler, error) {
	if resolver == nil {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"addressbook: resolver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: resolver, logger: logger}, nil
}

// Routes returns the API route mux. Both POST routes point at the same
// add-contact handler; which path a deployment's clients use is a matter
// of convention, not behavior.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/address-book", h.handleList)
	mux.HandleFunc("POST /api/address-book/contacts", h.handleAddContact)
	mux.HandleFunc("POST /api/address-book", h.handleAddContact)
	return mux
}

// handleList returns the caller's full contact collection as a JSON
// array. An empty collection is `[]`, not null.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		h.writeError(w, r, sserr.New(sserr.CodeAuthentication, "unauthorized"))
		return
	}

	contacts, err := h.resolver.List(ctx, identity.ID())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, contacts)
}

// addContactRequest is the add-contact request body.
type addContactRequest struct {
	Email string `json:"email"`
}

// handleAddContact resolves the submitted email against the directory
// and stores the resulting contact in the caller's collection, returning
// the contact as persisted.
func (h *Handler) handleAddContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		h.writeError(w, r, sserr.New(sserr.CodeAuthentication, "unauthorized"))
		return
	}

	var req addContactRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, r, sserr.Wrap(err, sserr.CodeValidationFormat,
			"request body must be a JSON object with an email field"))
		return
	}

	contact, err := h.resolver.ResolveAndStore(ctx, identity.ID(), req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, contact)
}

// errorResponse is the JSON body for every non-2xx API response.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err to its HTTP status and writes the coded error
// body. The wrapped cause is logged but never serialized.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	coded := sserr.FromError(err)
	status := coded.HTTPStatus()

	if sserr.IsServerError(err) {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", coded.Code,
			"error", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: coded.Code.String(), Message: coded.Message},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response body",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
}

// RequestIDMiddleware assigns each request a correlation id, echoing an
// inbound X-Request-Id header or generating a fresh UUID. The id is set
// on the response before the wrapped handler runs.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(contextWithRequestID(r.Context(), requestID)))
	})
}

// LoggingMiddleware emits one structured log line per request with the
// response status and duration.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			requestID, _ := RequestIDFromContext(r.Context())
			logger.InfoContext(r.Context(), "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestID,
			)
		})
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

type requestIDContextKey struct{}

func contextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the correlation id assigned by
// [RequestIDMiddleware], if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDContextKey{}).(string)
	return requestID, ok
}
