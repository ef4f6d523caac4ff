package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is an error response from the API. The server sends RFC 7807
// problem documents; Code carries the access error code when there is one.
type APIError struct {
	StatusCode int    `json:"status"`
	Type       string `json:"type,omitempty"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Code       string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, msg)
}

// IsAuthError reports a missing, invalid or insufficient credential.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports a missing resource.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict reports a duplicate or in-use resource.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsGone reports an expired, exhausted or disabled share link.
func (e *APIError) IsGone() bool {
	return e.StatusCode == http.StatusGone
}

// IsValidationError reports a rejected request body or path.
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == http.StatusBadRequest
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
