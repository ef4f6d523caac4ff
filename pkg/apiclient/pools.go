package apiclient

import (
	"strconv"

	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// PoolRequest creates or updates a pool. On update, nil fields are kept.
type PoolRequest = handlers.PoolRequest

// SetEnabledResponse reports a pool enable or disable.
type SetEnabledResponse = handlers.SetEnabledResponse

// ListPools returns every storage pool.
func (c *Client) ListPools() ([]models.StoragePool, error) {
	return listResources[models.StoragePool](c, "/api/v1/pools")
}

// GetPool returns a pool by ID.
func (c *Client) GetPool(id string) (*models.StoragePool, error) {
	return getResource[models.StoragePool](c, resourcePath("/api/v1/pools/%s", id))
}

// CreatePool creates a pool.
func (c *Client) CreatePool(req *PoolRequest) (*models.StoragePool, error) {
	return createResource[models.StoragePool](c, "/api/v1/pools", req)
}

// UpdatePool changes the set fields of a pool.
func (c *Client) UpdatePool(id string, req *PoolRequest) (*models.StoragePool, error) {
	return updateResource[models.StoragePool](c, resourcePath("/api/v1/pools/%s", id), req)
}

// EnablePool enables a pool.
func (c *Client) EnablePool(id string) (*SetEnabledResponse, error) {
	return createResource[SetEnabledResponse](c, resourcePath("/api/v1/pools/%s/enable", id), nil)
}

// DisablePool disables a pool. With cascade, its enabled zones are disabled
// too; without it, a pool with enabled zones is refused.
func (c *Client) DisablePool(id string, cascade bool) (*SetEnabledResponse, error) {
	path := resourcePath("/api/v1/pools/%s/disable", id) + "?cascade=" + strconv.FormatBool(cascade)
	return createResource[SetEnabledResponse](c, path, nil)
}

// DeletePool deletes a pool without zones.
func (c *Client) DeletePool(id string) error {
	return deleteResource(c, resourcePath("/api/v1/pools/%s", id))
}
