package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/registry"
)

// PermissionHandler manages fine-grained grants on zone paths (admin only).
type PermissionHandler struct {
	registry *registry.Registry
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(reg *registry.Registry) *PermissionHandler {
	return &PermissionHandler{registry: reg}
}

// GrantRequest is the request body for POST /api/v1/zones/{id}/permissions.
type GrantRequest struct {
	Path      string                `json:"path" validate:"required"`
	Kind      models.PermissionKind `json:"kind" validate:"required,oneof=read write delete"`
	Username  string                `json:"username,omitempty" validate:"required_without=GroupName,excluded_with=GroupName"`
	GroupName string                `json:"group_name,omitempty" validate:"required_without=Username"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

// List handles GET /api/v1/zones/{id}/permissions.
func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot()
	zone, ok := snap.LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}
	perms := snap.Permissions(zone.ID)
	if perms == nil {
		perms = []models.Permission{}
	}
	WriteJSONOK(w, perms)
}

// Grant handles POST /api/v1/zones/{id}/permissions.
func (h *PermissionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.registry.Snapshot().LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}

	var req GrantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	created, err := h.registry.GrantPermission(r.Context(), &models.Permission{
		ZoneID:    zone.ID,
		Path:      req.Path,
		Kind:      req.Kind,
		Username:  req.Username,
		GroupName: req.GroupName,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONCreated(w, created)
}

// Revoke handles DELETE /api/v1/zones/{id}/permissions/{permID}.
func (h *PermissionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.registry.Snapshot().LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}

	permID := chi.URLParam(r, "permID")
	found := false
	for _, p := range h.registry.Snapshot().Permissions(zone.ID) {
		if p.ID == permID {
			found = true
			break
		}
	}
	if !found {
		NotFound(w, "Permission not found")
		return
	}

	if err := h.registry.RevokePermission(r.Context(), permID); err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteNoContent(w)
}
