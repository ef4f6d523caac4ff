package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileserv/pkg/controlplane/store"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"defaults", func(*Config) {}, ""},
		{"invalid log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"api port out of range", func(c *Config) { c.ControlPlane.Port = 70000 }, "max"},
		{"sample rate above one", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "required"},
		{"token bytes too small", func(c *Config) { c.Links.TokenBytes = 8 }, "gte"},
		{"bcrypt cost too high", func(c *Config) { c.Links.BcryptCost = 40 }, "lte"},
		{"negative reap interval", func(c *Config) { c.Links.ReapInterval = -1 }, "gte"},
		{"empty admin", func(c *Config) { c.Admin.Username = "" }, "required"},
		{"unknown database", func(c *Config) { c.Database.Type = "mysql" }, "unsupported"},
		{"postgres without host", func(c *Config) {
			c.Database = store.Config{Type: store.DatabaseTypePostgres}
		}, "host"},
		{"metrics on api port", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = c.ControlPlane.Port
		}, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.errHas == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errHas)
		})
	}
}
