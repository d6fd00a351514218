// Package errors provides the structured error taxonomy shared by the
// authorization, audit, and impersonation packages.
//
// Errors carry a stable ErrorCode, a human-readable message, optional
// key-value details, and a wrapped cause. Callers branch on codes with
// IsCode/GetCode rather than string matching, and the HTTP layer maps codes
// to status codes with MapErrorCodeToHTTPStatus.
//
// Authorization denials use ErrCodeForbidden with a generic message that is
// safe to surface to end users; the specific deny reason travels in the
// error details for internal logging only.
package errors
