package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

// CreateLinkRequest issues a share link.
type CreateLinkRequest = sharelink.CreateRequest

// CreateLinkResponse carries the new link and its one-time plaintext token.
type CreateLinkResponse = handlers.CreateLinkResponse

// LinkInfo is what anonymous visitors learn about a link.
type LinkInfo = handlers.LinkInfo

// ListLinks returns the caller's links. Admins may pass all to list every
// link.
func (c *Client) ListLinks(all bool) ([]models.ShareLink, error) {
	path := "/api/v1/links"
	if all {
		path += "?all=true"
	}
	return listResources[models.ShareLink](c, path)
}

// GetLink returns a link by ID.
func (c *Client) GetLink(id string) (*models.ShareLink, error) {
	return getResource[models.ShareLink](c, resourcePath("/api/v1/links/%s", id))
}

// CreateLink issues a share link.
func (c *Client) CreateLink(req *CreateLinkRequest) (*CreateLinkResponse, error) {
	return createResource[CreateLinkResponse](c, "/api/v1/links", req)
}

// DisableLink disables a link without deleting it.
func (c *Client) DisableLink(id string) error {
	return c.post(resourcePath("/api/v1/links/%s/disable", id), nil, nil)
}

// DeleteLink deletes a link.
func (c *Client) DeleteLink(id string) error {
	return deleteResource(c, resourcePath("/api/v1/links/%s", id))
}

// ============================================================================
// Anonymous link access
// ============================================================================

// ViewLink returns the public description of a link and counts a view.
func (c *Client) ViewLink(token string) (*LinkInfo, error) {
	return getResource[LinkInfo](c, resourcePath("/s/%s", token))
}

// VerifyLinkPassword checks a link password.
func (c *Client) VerifyLinkPassword(token, password string) error {
	return c.post(resourcePath("/s/%s/verify", token), handlers.VerifyRequest{Password: password}, nil)
}

// DownloadLink streams the file behind a link into w and returns the
// number of bytes written. For folder links, path selects the file.
func (c *Client) DownloadLink(ctx context.Context, token, password, path string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodPost, resourcePath("/s/%s/download", token),
		handlers.DownloadRequest{Password: password, Path: path})
	if err != nil {
		return 0, err
	}
	// Downloads may outlive the API timeout; ctx bounds them instead.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return 0, decodeError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted: %w", err)
	}
	return n, nil
}
