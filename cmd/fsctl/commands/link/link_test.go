package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/fileserv/pkg/controlplane/models"
)

func TestLinkState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		link models.ShareLink
		want string
	}{
		{"active", models.ShareLink{Enabled: true, ExpiresAt: &future}, "active"},
		{"expired wins over disabled", models.ShareLink{Enabled: false, ExpiresAt: &past}, "expired"},
		{"disabled wins over exhausted", models.ShareLink{Enabled: false, MaxViews: 1, ViewCount: 1}, "disabled"},
		{"download limit", models.ShareLink{Enabled: true, MaxDownloads: 2, DownloadCount: 2}, "exhausted"},
		{"view limit", models.ShareLink{Enabled: true, MaxViews: 3, ViewCount: 3}, "exhausted"},
		{"unlimited", models.ShareLink{Enabled: true, DownloadCount: 1000}, "active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, linkState(&tt.link, now))
		})
	}
}

func TestUsageAndCapabilities(t *testing.T) {
	assert.Equal(t, "4", usage(4, 0))
	assert.Equal(t, "4/10", usage(4, 10))

	assert.Equal(t, "none", capabilities(models.LinkCapabilities{}))
	assert.Equal(t, "download, listing", capabilities(models.LinkCapabilities{AllowDownload: true, AllowListing: true}))
}

func TestLinkListRows(t *testing.T) {
	rows := LinkList{{ID: "l1", Owner: "alice", TargetPath: "/a.txt", TargetType: models.TargetFile, Enabled: true}}.Rows()
	assert.Equal(t, []string{"l1", "alice", "/a.txt", "file", "active", "0", "0", "never"}, rows[0])
}
