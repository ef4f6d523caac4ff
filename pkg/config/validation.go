package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/fileserv/pkg/controlplane/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg for invalid or inconsistent values. Call it after
// ApplyDefaults.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationErrors(err)
	}

	switch cfg.Database.Type {
	case store.DatabaseTypeSQLite:
		if cfg.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required")
		}
	case store.DatabaseTypePostgres:
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return errors.New("database.postgres requires host and database")
		}
	default:
		return fmt.Errorf("database.type: unsupported type %q (failed on 'oneof')", cfg.Database.Type)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.ControlPlane.Port {
		return fmt.Errorf("metrics.port and controlplane.port must differ, both are %d", cfg.Metrics.Port)
	}
	return nil
}

// formatValidationErrors turns validator errors into one readable error
// naming each failing field and tag.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (value: %v)",
			strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
