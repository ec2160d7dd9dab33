// Package errors provides standardized error types and error handling
// utilities for the StricklySoft address book service. It defines the error
// categories the service emits, stable machine-readable codes, and helper
// functions for creating, wrapping, and inspecting errors across packages.
//
// # Error Categories
//
// The package defines the categories that map to the service's failure
// scenarios:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Missing, malformed, expired, or unverifiable tokens
//   - NotFound errors: User or contact does not exist
//   - Internal errors: Unexpected failures, persistence faults
//   - Unavailable errors: A dependency (identity provider, store) is down
//   - Timeout errors: Operation exceeded time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_002") that can be
// used for error tracking, alerting, and client-side error handling. Codes
// follow the pattern CATEGORY_XXX and are stable once assigned.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeValidationRequired, "email is required")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeInternalDatabase, "failed to store contact")
//
// Check error category:
//
//	if errors.IsNotFound(err) {
//	    // handle not found
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("operation failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
