package apiclient

import (
	"fmt"
	"net/url"
)

// ============================================================================
// Generic helpers
// ============================================================================

// getResource GETs path and decodes the body into a T.
func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listResources GETs path and decodes the body into a []T. An empty list
// is returned as a non-nil slice.
func listResources[T any](c *Client, path string) ([]T, error) {
	results := []T{}
	if err := c.get(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// createResource POSTs body to path and decodes the response into a T.
func createResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.post(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// updateResource PUTs body to path and decodes the response into a T.
func updateResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.put(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func deleteResource(c *Client, path string) error {
	return c.delete(path, nil)
}

// resourcePath formats a path template, escaping every argument as a path
// segment.
func resourcePath(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return fmt.Sprintf(format, escaped...)
}
