package apiclient

import (
	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/pkg/access/quota"
)

// CheckRequest asks whether an operation would be allowed.
type CheckRequest = handlers.CheckRequest

// CheckResponse describes an allowed operation.
type CheckResponse = handlers.CheckResponse

// CheckAccess runs the access pipeline for the caller without charging
// quota. A denial is returned as an *APIError carrying the access code.
func (c *Client) CheckAccess(req *CheckRequest) (*CheckResponse, error) {
	return createResource[CheckResponse](c, "/api/v1/access/check", req)
}

// MyQuota returns the caller's usage in every pool.
func (c *Client) MyQuota() ([]quota.Usage, error) {
	return listResources[quota.Usage](c, "/api/v1/quota/me")
}

// OverQuota returns every account over its limit (admin).
func (c *Client) OverQuota() ([]quota.Usage, error) {
	return listResources[quota.Usage](c, "/api/v1/quota/over")
}
