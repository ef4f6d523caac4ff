package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/fileserv/internal/logger"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/access/pipeline"
	"github.com/marmos91/fileserv/pkg/access/resolver"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ============================================================================
// Owner routes
// ============================================================================

// LinkHandler manages the share links of authenticated users.
type LinkHandler struct {
	links *sharelink.Manager
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(links *sharelink.Manager) *LinkHandler {
	return &LinkHandler{links: links}
}

// CreateLinkResponse carries the plaintext token. It is never shown again.
type CreateLinkResponse struct {
	Link  *models.ShareLink `json:"link"`
	Token string            `json:"token"`
	URL   string            `json:"url"`
}

// List handles GET /api/v1/links[?all=true]. Only administrators can list
// every link.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	links, err := h.links.List(r.Context(), actor, all)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	if links == nil {
		links = []*models.ShareLink{}
	}
	WriteJSONOK(w, links)
}

// Get handles GET /api/v1/links/{id}.
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	link, err := h.links.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONOK(w, link)
}

// Create handles POST /api/v1/links.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}

	var req sharelink.CreateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	link, token, err := h.links.Create(r.Context(), actor, req)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONCreated(w, CreateLinkResponse{Link: link, Token: token, URL: "/s/" + token})
}

// Disable handles POST /api/v1/links/{id}/disable.
func (h *LinkHandler) Disable(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	if err := h.links.Disable(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Delete handles DELETE /api/v1/links/{id}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		Unauthorized(w, "Authentication required")
		return
	}
	if err := h.links.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// ============================================================================
// Public routes
// ============================================================================

// PublicLinkHandler serves anonymous share link access under /s/{token}.
type PublicLinkHandler struct {
	links    *sharelink.Manager
	pipeline *pipeline.Pipeline
}

// NewPublicLinkHandler creates a new PublicLinkHandler.
func NewPublicLinkHandler(links *sharelink.Manager, p *pipeline.Pipeline) *PublicLinkHandler {
	return &PublicLinkHandler{links: links, pipeline: p}
}

// LinkInfo is what an anonymous holder learns about a link.
type LinkInfo struct {
	TargetName    string                  `json:"target_name"`
	TargetType    models.LinkTargetType   `json:"target_type"`
	Capabilities  models.LinkCapabilities `json:"capabilities"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
	HasPassword   bool                    `json:"has_password"`
	MaxDownloads  int64                   `json:"max_downloads"`
	DownloadCount int64                   `json:"download_count"`
	MaxViews      int64                   `json:"max_views"`
	ViewCount     int64                   `json:"view_count"`
	Description   string                  `json:"description,omitempty"`
}

func linkInfo(link *models.ShareLink) LinkInfo {
	return LinkInfo{
		TargetName:    link.TargetName,
		TargetType:    link.TargetType,
		Capabilities:  link.LinkCapabilities,
		ExpiresAt:     link.ExpiresAt,
		HasPassword:   link.HasPassword(),
		MaxDownloads:  link.MaxDownloads,
		DownloadCount: link.DownloadCount,
		MaxViews:      link.MaxViews,
		ViewCount:     link.ViewCount,
		Description:   link.Description,
	}
}

// VerifyRequest is the request body for POST /s/{token}/verify.
type VerifyRequest struct {
	Password string `json:"password"`
}

// DownloadRequest is the request body for POST /s/{token}/download.
type DownloadRequest struct {
	Password string `json:"password,omitempty"`
	// Path is relative to a folder link; empty for file links.
	Path string `json:"path,omitempty"`
}

// View handles GET /s/{token}. Each call consumes a view.
func (h *PublicLinkHandler) View(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.RecordView(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	WriteJSONOK(w, linkInfo(link))
}

// Verify handles POST /s/{token}/verify.
func (h *PublicLinkHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ok, err := h.links.VerifyPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	if !ok {
		WriteAccessError(w, accesserrors.New(accesserrors.ErrInvalidPassword, "invalid password", ""))
		return
	}
	WriteJSONOK(w, map[string]bool{"valid": true})
}

// Download handles POST /s/{token}/download: it authorizes the request,
// consumes a download and streams the file.
func (h *PublicLinkHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	token := chi.URLParam(r, "token")

	// Downloading a folder itself would burn a counter for nothing.
	link, err := h.links.Resolve(r.Context(), token)
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	if link.TargetType == models.TargetFolder && (req.Path == "" || req.Path == "/") {
		BadRequest(w, "A path inside the shared folder is required")
		return
	}

	grant, err := h.pipeline.AuthorizeLink(r.Context(), pipeline.LinkRequest{
		Token:      token,
		Password:   req.Password,
		SubPath:    req.Path,
		Capability: models.CapDownload,
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		NotFound(w, "File not found")
		return
	case errors.Is(err, pipeline.ErrNotAFile):
		BadRequest(w, "Path is a directory")
		return
	case err != nil:
		mapStoreError(w, r, err)
		return
	}

	f, err := resolver.Open(grant.Resolved)
	if err != nil {
		if accesserrors.IsPathEscape(err) {
			logger.SecurityEvent(r.Context(), "path_escape", logger.KeyLink, grant.Link.ID)
			WriteAccessError(w, err)
			return
		}
		if errors.Is(err, fs.ErrNotExist) {
			NotFound(w, "File not found")
			return
		}
		mapStoreError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		mapStoreError(w, r, err)
		return
	}
	if info.IsDir() {
		BadRequest(w, "Path is a directory")
		return
	}

	// Large files outlive the server-wide write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
