package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileserv/pkg/access/quota"
)

func TestUsageListRows(t *testing.T) {
	list := UsageList{
		{
			Subject:   quota.UserSubject("alice"),
			PoolID:    "pool-1",
			Used:      768,
			Reserved:  256,
			Limit:     2048,
			OverQuota: false,
			Zones:     map[string]int64{"team": 512, "home": 256},
		},
		{Subject: quota.UserSubject("bob"), PoolID: "pool-1", Used: 10},
	}

	rows := list.Rows()
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(list.Headers()))
	assert.Equal(t, "user:alice", rows[0][0])
	assert.Equal(t, "50.0%", rows[0][5])
	assert.Equal(t, "no", rows[0][6])
	assert.Equal(t, "home=256B team=512B", rows[0][7])

	assert.Equal(t, "-", rows[1][4], "no limit")
	assert.Equal(t, "-", rows[1][5])
	assert.Equal(t, "-", rows[1][7])
}
