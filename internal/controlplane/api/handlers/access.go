package handlers

import (
	"net/http"

	"github.com/marmos91/fileserv/pkg/access/pipeline"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// AccessHandler exposes the operation pipeline and the quota tracker to
// authenticated users.
type AccessHandler struct {
	pipeline *pipeline.Pipeline
	tracker  *quota.Tracker
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(p *pipeline.Pipeline, tracker *quota.Tracker) *AccessHandler {
	return &AccessHandler{pipeline: p, tracker: tracker}
}

// CheckRequest is the request body for POST /api/v1/access/check.
type CheckRequest struct {
	Zone      string                `json:"zone" validate:"required"`
	Path      string                `json:"path" validate:"required"`
	Kind      models.PermissionKind `json:"kind" validate:"required,oneof=read write delete"`
	Size      int64                 `json:"size,omitempty" validate:"gte=0"`
	Directory bool                  `json:"directory,omitempty"`
}

// CheckResponse reports an allowed operation.
type CheckResponse struct {
	Allowed bool                  `json:"allowed"`
	ZoneID  string                `json:"zone_id"`
	Zone    string                `json:"zone"`
	Path    string                `json:"path"`
	Kind    models.PermissionKind `json:"kind"`
	// GrantID is the permission that decided the outcome, if any.
	GrantID string `json:"grant_id,omitempty"`
}

// Check handles POST /api/v1/access/check. It runs the full pipeline for
// the caller, then releases any reservation it made: nothing is charged.
// Denials come back as problem documents.
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}

	var req CheckRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	grant, err := h.pipeline.AuthorizeAndReserve(r.Context(), pipeline.Request{
		Actor:     actor,
		ZoneID:    req.Zone,
		Path:      req.Path,
		Kind:      req.Kind,
		SizeHint:  req.Size,
		Directory: req.Directory,
	})
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	grant.Abort()

	resp := CheckResponse{
		Allowed: true,
		ZoneID:  grant.Zone.ID,
		Zone:    grant.Zone.Name,
		Path:    grant.Resolved.Virtual,
		Kind:    req.Kind,
	}
	if grant.Decision.Grant != nil {
		resp.GrantID = grant.Decision.Grant.ID
	}
	WriteJSONOK(w, resp)
}

// MyQuota handles GET /api/v1/quota/me: the caller's usage in every pool
// where it has an account.
func (h *AccessHandler) MyQuota(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	usage := h.tracker.SubjectUsage(quota.UserSubject(actor.Username))
	if usage == nil {
		usage = []quota.Usage{}
	}
	WriteJSONOK(w, usage)
}

// OverQuota handles GET /api/v1/quota/over (admin only).
func (h *AccessHandler) OverQuota(w http.ResponseWriter, r *http.Request) {
	over := h.tracker.OverQuota()
	if over == nil {
		over = []quota.Usage{}
	}
	WriteJSONOK(w, over)
}
