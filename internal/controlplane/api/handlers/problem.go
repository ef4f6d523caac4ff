// Package handlers provides the HTTP handlers of the fileserv REST API.
package handlers

import (
	"encoding/json"
	"net/http"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Code is the access error code for access denials.
	Code string `json:"code,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// accessProblemType prefixes the type URI of access denials.
const accessProblemType = "urn:fileserv:access:"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, problem *Problem) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Common problem helper functions for standard HTTP errors.

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, "Conflict", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// StatusForCode maps an access error code to its HTTP status.
func StatusForCode(code accesserrors.ErrorCode) int {
	switch code {
	case accesserrors.ErrPathEscape, accesserrors.ErrInvalidPath:
		return http.StatusBadRequest
	case accesserrors.ErrZoneNotFound, accesserrors.ErrLinkNotFound:
		return http.StatusNotFound
	case accesserrors.ErrLinkExpired, accesserrors.ErrLinkLimitReached, accesserrors.ErrLinkDisabled:
		return http.StatusGone
	case accesserrors.ErrQuotaExceeded, accesserrors.ErrInsufficientCapacity:
		return http.StatusInsufficientStorage
	case accesserrors.ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case accesserrors.ErrInvalidPassword:
		return http.StatusUnauthorized
	case 0:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

// WriteAccessError writes an access denial as a problem document. The
// error must already have gone through accesserrors.Public.
func WriteAccessError(w http.ResponseWriter, err error) {
	code := accesserrors.CodeOf(err)
	status := StatusForCode(code)
	problem := &Problem{
		Type:   accessProblemType + code.String(),
		Title:  http.StatusText(status),
		Status: status,
		Code:   code.String(),
	}
	// Path escapes never echo the offending path back.
	if code == accesserrors.ErrPathEscape {
		problem.Detail = "path escapes its root"
	} else {
		problem.Detail = err.Error()
	}
	writeProblem(w, problem)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
