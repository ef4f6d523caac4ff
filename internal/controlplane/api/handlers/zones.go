package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/registry"
)

// ZoneHandler handles share zone management. Everything but Mine is
// admin only.
type ZoneHandler struct {
	registry *registry.Registry
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(reg *registry.Registry) *ZoneHandler {
	return &ZoneHandler{registry: reg}
}

// ZoneRequest is the request body for POST /api/v1/zones and
// PUT /api/v1/zones/{id}. On update, nil fields keep their value and the
// pool cannot change.
type ZoneRequest struct {
	Name        *string          `json:"name,omitempty"`
	Pool        *string          `json:"pool,omitempty"`
	Description *string          `json:"description,omitempty"`
	Path        *string          `json:"path,omitempty"`
	ZoneType    *models.ZoneType `json:"zone_type,omitempty" validate:"omitnil,oneof=personal group public"`

	Enabled       *bool `json:"enabled,omitempty"`
	AutoProvision *bool `json:"auto_provision,omitempty"`

	AllowedUsers  *[]string `json:"allowed_users,omitempty"`
	AllowedGroups *[]string `json:"allowed_groups,omitempty"`
	DenyUsers     *[]string `json:"deny_users,omitempty"`
	DenyGroups    *[]string `json:"deny_groups,omitempty"`

	MaxQuotaPerUser *int64 `json:"max_quota_per_user,omitempty" validate:"omitnil,gte=0"`

	ReadOnly   *bool `json:"read_only,omitempty"`
	AllowWrite *bool `json:"allow_write,omitempty"`
	Browsable  *bool `json:"browsable,omitempty"`

	AllowNetworkShares *bool `json:"allow_network_shares,omitempty"`
	AllowWebShares     *bool `json:"allow_web_shares,omitempty"`

	SMBOptions *models.SMBOptions `json:"smb_options,omitempty"`
	NFSOptions *models.NFSOptions `json:"nfs_options,omitempty"`
	WebOptions *models.WebOptions `json:"web_options,omitempty"`
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setListIf(dst *models.StringList, src *[]string) {
	if src != nil {
		*dst = models.StringList(*src)
	}
}

// apply copies the set fields onto zone. The pool is handled by the caller.
func (req *ZoneRequest) apply(zone *models.ShareZone) {
	setIf(&zone.Name, req.Name)
	setIf(&zone.Description, req.Description)
	setIf(&zone.Path, req.Path)
	setIf(&zone.ZoneType, req.ZoneType)
	setIf(&zone.Enabled, req.Enabled)
	setIf(&zone.AutoProvision, req.AutoProvision)
	setListIf(&zone.AllowedUsers, req.AllowedUsers)
	setListIf(&zone.AllowedGroups, req.AllowedGroups)
	setListIf(&zone.DenyUsers, req.DenyUsers)
	setListIf(&zone.DenyGroups, req.DenyGroups)
	setIf(&zone.MaxQuotaPerUser, req.MaxQuotaPerUser)
	setIf(&zone.ReadOnly, req.ReadOnly)
	setIf(&zone.AllowWrite, req.AllowWrite)
	setIf(&zone.Browsable, req.Browsable)
	setIf(&zone.AllowNetworkShares, req.AllowNetworkShares)
	setIf(&zone.AllowWebShares, req.AllowWebShares)
	setIf(&zone.SMBOptions, req.SMBOptions)
	setIf(&zone.NFSOptions, req.NFSOptions)
	setIf(&zone.WebOptions, req.WebOptions)
}

// List handles GET /api/v1/zones.
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.registry.Snapshot().Zones())
}

// Mine handles GET /api/v1/zones/mine: the zones the caller may browse.
func (h *ZoneHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	WriteJSONOK(w, h.registry.UserZones(actor))
}

// Get handles GET /api/v1/zones/{id}. The id may also be a zone name.
func (h *ZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.registry.Snapshot().LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}
	WriteJSONOK(w, zone)
}

// Create handles POST /api/v1/zones. The pool may be given by ID or name.
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ZoneRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == nil || req.Pool == nil {
		BadRequest(w, "Name and pool are required")
		return
	}

	snap := h.registry.Snapshot()
	pool, ok := snap.Pool(*req.Pool)
	if !ok {
		pool, ok = snap.PoolByName(*req.Pool)
	}
	if !ok {
		NotFound(w, "Pool not found")
		return
	}

	zone := &models.ShareZone{
		PoolID:    pool.ID,
		ZoneType:  models.ZoneTypeGroup,
		Enabled:   true,
		Browsable: true,
	}
	req.apply(zone)

	created, err := h.registry.CreateZone(r.Context(), zone)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONCreated(w, created)
}

// Update handles PUT /api/v1/zones/{id}.
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.registry.Snapshot().LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}

	var req ZoneRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Pool != nil && *req.Pool != existing.PoolID {
		BadRequest(w, "The pool of a zone cannot change")
		return
	}

	zone := *existing
	req.apply(&zone)

	updated, err := h.registry.UpdateZone(r.Context(), &zone)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONOK(w, updated)
}

// Delete handles DELETE /api/v1/zones/{id}. Files stay on disk; the
// zone's permissions and share links go away.
func (h *ZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	zone, ok := h.registry.Snapshot().LookupZone(chi.URLParam(r, "id"))
	if !ok {
		NotFound(w, "Zone not found")
		return
	}
	if err := h.registry.DeleteZone(r.Context(), zone.ID); err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteNoContent(w)
}
