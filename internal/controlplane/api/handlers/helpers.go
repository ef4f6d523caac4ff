package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/fileserv/internal/logger"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/registry"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSONBody decodes and validates a JSON request body into v.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		BadRequest(w, validationMessage(err))
		return false
	}
	return true
}

// validationMessage flattens validator errors into one line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

// actorFrom returns the identity placed in the context by the auth
// middleware.
func actorFrom(r *http.Request) (identity.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	return id, ok && !id.IsZero()
}

// mapStoreError writes the response for an error returned by the registry,
// the store or the link manager.
func mapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case accesserrors.IsAccessError(err):
		WriteAccessError(w, err)

	case errors.Is(err, models.ErrPoolNotFound):
		NotFound(w, "Pool not found")
	case errors.Is(err, models.ErrZoneNotFound):
		NotFound(w, "Zone not found")
	case errors.Is(err, models.ErrPermissionNotFound):
		NotFound(w, "Permission not found")
	case errors.Is(err, models.ErrLinkNotFound):
		NotFound(w, "Link not found")
	case errors.Is(err, models.ErrUserNotFound):
		NotFound(w, "User not found")

	case errors.Is(err, models.ErrDuplicatePool):
		Conflict(w, "Pool already exists")
	case errors.Is(err, models.ErrDuplicateZone):
		Conflict(w, "Zone already exists")
	case errors.Is(err, models.ErrDuplicatePermission):
		Conflict(w, "Permission already exists")
	case errors.Is(err, models.ErrPoolHasZones):
		Conflict(w, "Pool is referenced by zones")
	case errors.Is(err, models.ErrPoolHasEnabledZones):
		Conflict(w, "Pool has enabled zones; use cascade=true")
	case errors.Is(err, registry.ErrPoolDisabled):
		Conflict(w, "Pool is disabled")

	case registry.IsValidationError(err), errors.Is(err, sharelink.ErrInvalidRequest):
		BadRequest(w, err.Error())

	default:
		logger.ErrorCtx(r.Context(), "request failed", logger.KeyError, err)
		InternalServerError(w, "Internal error")
	}
}
