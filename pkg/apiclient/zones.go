package apiclient

import (
	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// ZoneRequest creates or updates a zone. On update, nil fields are kept.
type ZoneRequest = handlers.ZoneRequest

// GrantRequest grants a permission within a zone.
type GrantRequest = handlers.GrantRequest

// ListZones returns every zone (admin).
func (c *Client) ListZones() ([]models.ShareZone, error) {
	return listResources[models.ShareZone](c, "/api/v1/zones")
}

// MyZones returns the zones visible to the authenticated user.
func (c *Client) MyZones() ([]models.ShareZone, error) {
	return listResources[models.ShareZone](c, "/api/v1/zones/mine")
}

// GetZone returns a zone by ID or name.
func (c *Client) GetZone(ref string) (*models.ShareZone, error) {
	return getResource[models.ShareZone](c, resourcePath("/api/v1/zones/%s", ref))
}

// CreateZone creates a zone.
func (c *Client) CreateZone(req *ZoneRequest) (*models.ShareZone, error) {
	return createResource[models.ShareZone](c, "/api/v1/zones", req)
}

// UpdateZone changes the set fields of a zone.
func (c *Client) UpdateZone(ref string, req *ZoneRequest) (*models.ShareZone, error) {
	return updateResource[models.ShareZone](c, resourcePath("/api/v1/zones/%s", ref), req)
}

// DeleteZone deletes a zone together with its permissions.
func (c *Client) DeleteZone(ref string) error {
	return deleteResource(c, resourcePath("/api/v1/zones/%s", ref))
}

// ListPermissions returns the permissions of a zone.
func (c *Client) ListPermissions(zoneRef string) ([]models.Permission, error) {
	return listResources[models.Permission](c, resourcePath("/api/v1/zones/%s/permissions", zoneRef))
}

// GrantPermission grants a permission in a zone.
func (c *Client) GrantPermission(zoneRef string, req *GrantRequest) (*models.Permission, error) {
	return createResource[models.Permission](c, resourcePath("/api/v1/zones/%s/permissions", zoneRef), req)
}

// RevokePermission removes a permission from a zone.
func (c *Client) RevokePermission(zoneRef, permID string) error {
	return deleteResource(c, resourcePath("/api/v1/zones/%s/permissions/%s", zoneRef, permID))
}
