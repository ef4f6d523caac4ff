package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/registry"
)

// PoolHandler handles storage pool management (admin only).
type PoolHandler struct {
	registry *registry.Registry
}

// NewPoolHandler creates a new PoolHandler.
func NewPoolHandler(reg *registry.Registry) *PoolHandler {
	return &PoolHandler{registry: reg}
}

// PoolRequest is the request body for POST /api/v1/pools and
// PUT /api/v1/pools/{id}. On update, nil fields keep their value.
type PoolRequest struct {
	Name              *string   `json:"name,omitempty"`
	Path              *string   `json:"path,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Enabled           *bool     `json:"enabled,omitempty"`
	ReservedSpace     *int64    `json:"reserved_space,omitempty" validate:"omitnil,gte=0"`
	MaxFileSize       *int64    `json:"max_file_size,omitempty" validate:"omitnil,gte=0"`
	AllowedTypes      *[]string `json:"allowed_types,omitempty"`
	DeniedTypes       *[]string `json:"denied_types,omitempty"`
	DefaultUserQuota  *int64    `json:"default_user_quota,omitempty" validate:"omitnil,gte=0"`
	DefaultGroupQuota *int64    `json:"default_group_quota,omitempty" validate:"omitnil,gte=0"`
}

// apply copies the set fields onto pool.
func (req *PoolRequest) apply(pool *models.StoragePool) {
	if req.Name != nil {
		pool.Name = *req.Name
	}
	if req.Path != nil {
		pool.Path = *req.Path
	}
	if req.Description != nil {
		pool.Description = *req.Description
	}
	if req.ReservedSpace != nil {
		pool.ReservedSpace = *req.ReservedSpace
	}
	if req.MaxFileSize != nil {
		pool.MaxFileSize = *req.MaxFileSize
	}
	if req.AllowedTypes != nil {
		pool.AllowedTypes = models.StringList(*req.AllowedTypes)
	}
	if req.DeniedTypes != nil {
		pool.DeniedTypes = models.StringList(*req.DeniedTypes)
	}
	if req.DefaultUserQuota != nil {
		pool.DefaultUserQuota = *req.DefaultUserQuota
	}
	if req.DefaultGroupQuota != nil {
		pool.DefaultGroupQuota = *req.DefaultGroupQuota
	}
}

// List handles GET /api/v1/pools.
func (h *PoolHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.registry.Snapshot().Pools())
}

// Get handles GET /api/v1/pools/{id}.
func (h *PoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	pool, ok := h.registry.Snapshot().Pool(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Pool not found")
		return
	}
	WriteJSONOK(w, pool)
}

// Create handles POST /api/v1/pools.
// New pools are enabled unless the request says otherwise.
func (h *PoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PoolRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == nil || req.Path == nil {
		BadRequest(w, "Name and path are required")
		return
	}

	pool := &models.StoragePool{Enabled: true}
	req.apply(pool)
	if req.Enabled != nil {
		pool.Enabled = *req.Enabled
	}

	created, err := h.registry.CreatePool(r.Context(), pool)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONCreated(w, created)
}

// Update handles PUT /api/v1/pools/{id}. The enabled flag is changed
// through the enable and disable endpoints only.
func (h *PoolHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.registry.Snapshot().Pool(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Pool not found")
		return
	}

	var req PoolRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Enabled != nil {
		BadRequest(w, "Use the enable and disable endpoints to change the pool state")
		return
	}

	pool := *existing
	req.apply(&pool)

	updated, err := h.registry.UpdatePool(r.Context(), &pool)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONOK(w, updated)
}

// SetEnabledResponse is returned by the enable and disable endpoints.
type SetEnabledResponse struct {
	Enabled       bool  `json:"enabled"`
	ZonesDisabled int64 `json:"zones_disabled"`
}

// Enable handles POST /api/v1/pools/{id}/enable.
func (h *PoolHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable handles POST /api/v1/pools/{id}/disable[?cascade=true].
func (h *PoolHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *PoolHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	cascade := false
	if v := r.URL.Query().Get("cascade"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "cascade must be a boolean")
			return
		}
		cascade = parsed
	}

	disabled, err := h.registry.SetPoolEnabled(r.Context(), chi.URLParam(r, "id"), enabled, cascade)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONOK(w, SetEnabledResponse{Enabled: enabled, ZonesDisabled: disabled})
}

// Delete handles DELETE /api/v1/pools/{id}.
func (h *PoolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeletePool(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteNoContent(w)
}
