package pool

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	fs := pflag.NewFlagSet("pool", pflag.ContinueOnError)
	addPoolFlags(fs)
	require.NoError(t, fs.Parse([]string{"--max-file-size", "4GiB", "--denied-types", "exe, bat", "--allowed-types", ""}))

	req, err := buildRequest(fs)
	require.NoError(t, err)

	assert.Nil(t, req.Name)
	assert.Nil(t, req.DefaultUserQuota)
	require.NotNil(t, req.MaxFileSize)
	assert.Equal(t, int64(4<<30), *req.MaxFileSize)
	require.NotNil(t, req.DeniedTypes)
	assert.Equal(t, []string{"exe", "bat"}, *req.DeniedTypes)
	require.NotNil(t, req.AllowedTypes)
	assert.Empty(t, *req.AllowedTypes)
}

func TestBuildRequestBadSize(t *testing.T) {
	fs := pflag.NewFlagSet("pool", pflag.ContinueOnError)
	addPoolFlags(fs)
	require.NoError(t, fs.Parse([]string{"--user-quota", "plenty"}))

	_, err := buildRequest(fs)
	assert.Error(t, err)
}
