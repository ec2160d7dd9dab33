package auth

import (
	"log/slog"
	"net/http"
	"strings"

	sserr "github.com/StricklySoft/addressbook/pkg/errors"
)

// Middleware returns an HTTP middleware that authenticates every request
// before it reaches the wrapped handler.
//
// The middleware performs the following steps:
//  1. Requires an Authorization header with the exact "Bearer " prefix
//  2. Validates the token using the provided [TokenValidator]
//  3. Stores the resulting [Identity] and the raw bearer credential
//     (as a redacting [Secret]) in the request context
//  4. Passes the enriched request to the next handler
//
// A missing or malformed header is rejected without invoking the
// validator. All rejections produce the same generic 401 response; the
// specific reason is logged server-side so clients cannot probe which
// check failed.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /api/address-book", handleList)
//	handler := auth.Middleware(verifier)(mux)
//	http.ListenAndServe(":8080", handler)
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get(HeaderAuthorization)
			if !strings.HasPrefix(header, BearerPrefix) {
				slog.DebugContext(ctx, "auth: request rejected before validation",
					"reason", "missing or non-bearer authorization header",
					"path", r.URL.Path,
				)
				writeUnauthorized(w)
				return
			}

			token := header[len(BearerPrefix):]
			if token == "" {
				slog.DebugContext(ctx, "auth: request rejected before validation",
					"reason", "empty bearer token",
					"path", r.URL.Path,
				)
				writeUnauthorized(w)
				return
			}

			identity, err := validator.Validate(ctx, token)
			if err != nil {
				// Log the specific rejection code; the response stays generic.
				slog.WarnContext(ctx, "auth: token validation failed",
					"code", sserr.GetCode(err),
					"path", r.URL.Path,
				)
				writeUnauthorized(w)
				return
			}

			ctx = ContextWithIdentity(ctx, identity)
			ctx = ContextWithBearerToken(ctx, Secret(token))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized sends the single generic 401 response used for every
// authentication failure.
func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
