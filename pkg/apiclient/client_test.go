package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.BaseURL())
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8080")
	tokenClient := client.WithToken("test-token")

	assert.Empty(t, client.token)
	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8080", tokenClient.baseURL)
}

func TestDoSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer server.Close()

	client := New(server.URL)
	client.SetToken("test-token")

	var resp map[string]string
	require.NoError(t, client.post("/test", map[string]string{"a": "b"}, &resp))
	assert.Equal(t, "ok", resp["message"])
}

func TestDoDecodesProblem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Forbidden","status":403,"detail":"write permission required","code":"NoGrant"}`))
	}))
	defer server.Close()

	err := New(server.URL).get("/test", nil)
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "NoGrant", apiErr.Code)
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, "NoGrant: write permission required", apiErr.Error())
}

func TestDoPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(server.URL).get("/test", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Title)
	assert.Equal(t, "upstream broke", apiErr.Detail)
}

func TestAPIErrorPredicates(t *testing.T) {
	tests := []struct {
		status int
		check  func(*APIError) bool
	}{
		{http.StatusUnauthorized, (*APIError).IsAuthError},
		{http.StatusNotFound, (*APIError).IsNotFound},
		{http.StatusConflict, (*APIError).IsConflict},
		{http.StatusGone, (*APIError).IsGone},
		{http.StatusBadRequest, (*APIError).IsValidationError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.True(t, tt.check(&APIError{StatusCode: tt.status}))
			assert.False(t, tt.check(&APIError{StatusCode: http.StatusTeapot}))
		})
	}
}

func TestResourcePathEscapes(t *testing.T) {
	assert.Equal(t, "/api/v1/zones/team%2Fa/permissions/p1",
		resourcePath("/api/v1/zones/%s/permissions/%s", "team/a", "p1"))
}

func TestListPoolsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/pools", r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	pools, err := New(server.URL).ListPools()
	require.NoError(t, err)
	assert.NotNil(t, pools)
	assert.Empty(t, pools)
}

func TestCreatePool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req PoolRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Name)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.StoragePool{ID: "p1", Name: *req.Name, Path: *req.Path, Enabled: true})
	}))
	defer server.Close()

	name, path := "primary", "/srv/primary"
	pool, err := New(server.URL).CreatePool(&PoolRequest{Name: &name, Path: &path})
	require.NoError(t, err)
	assert.Equal(t, "p1", pool.ID)
	assert.Equal(t, "primary", pool.Name)
	assert.True(t, pool.Enabled)
}

func TestDisablePoolCascade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/pools/p1/disable", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("cascade"))
		_ = json.NewEncoder(w).Encode(SetEnabledResponse{Enabled: false, ZonesDisabled: 2})
	}))
	defer server.Close()

	resp, err := New(server.URL).DisablePool("p1", true)
	require.NoError(t, err)
	assert.False(t, resp.Enabled)
	assert.EqualValues(t, 2, resp.ZonesDisabled)
}

func TestRevokePermission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/zones/team/permissions/perm-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, New(server.URL).RevokePermission("team", "perm-1"))
}

func TestListLinksAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		_ = json.NewEncoder(w).Encode([]models.ShareLink{{ID: "l1"}, {ID: "l2"}})
	}))
	defer server.Close()

	links, err := New(server.URL).ListLinks(true)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestDownloadLink(t *testing.T) {
	payload := []byte("file contents")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/s/tok/download", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"password":"secret","path":"docs/a.txt"}`, string(body))
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := New(server.URL).DownloadLink(context.Background(), "tok", "secret", "docs/a.txt", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestDownloadLinkGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"title":"Gone","status":410,"detail":"download limit reached","code":"LinkLimitReached"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	_, err := New(server.URL).DownloadLink(context.Background(), "tok", "", "", &buf)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsGone())
	assert.Equal(t, "LinkLimitReached", apiErr.Code)
	assert.Zero(t, buf.Len())
}

func TestReadyReportsUnhealthyComponents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","timestamp":"2026-01-02T03:04:05Z","data":[{"name":"database","status":"healthy"},{"name":"quota_ledger","status":"unhealthy","error":"closed"}]}`))
	}))
	defer server.Close()

	resp, err := New(server.URL).Ready(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Healthy())

	components, err := resp.Components()
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "quota_ledger", components[1].Name)
	assert.Equal(t, "closed", components[1].Error)
}
