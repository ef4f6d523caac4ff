package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DatabaseType selects the backend holding the control plane records.
type DatabaseType string

const (
	// DatabaseTypeSQLite keeps everything in one local file (default).
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres shares the records between several servers.
	DatabaseTypePostgres DatabaseType = "postgres"
)

const (
	defaultPostgresPort     = 5432
	defaultPostgresSSLMode  = "disable"
	defaultPostgresMaxOpen  = 25
	defaultPostgresMaxIdle  = 5
	sqliteBusyTimeoutMillis = 5000
)

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	// Path defaults to $XDG_CONFIG_HOME/fileserv/controlplane.db.
	// ":memory:" gives a throwaway database.
	Path string `mapstructure:"path" yaml:"path" json:"path,omitempty"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host" json:"host,omitempty"`
	Port         int    `mapstructure:"port" yaml:"port" json:"port,omitempty"`
	Database     string `mapstructure:"database" yaml:"database" json:"database,omitempty"`
	User         string `mapstructure:"user" yaml:"user" json:"user,omitempty"`
	Password     string `mapstructure:"password" yaml:"password" json:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode" json:"sslmode,omitempty" jsonschema:"enum=disable,enum=require,enum=verify-ca,enum=verify-full"`
	SSLRootCert  string `mapstructure:"sslrootcert" yaml:"sslrootcert" json:"sslrootcert,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns,omitempty"`
}

// DSN renders the settings as a libpq keyword/value string. Values that are
// empty or contain spaces, quotes or backslashes are single-quoted.
func (c *PostgresConfig) DSN() string {
	pairs := [][2]string{
		{"host", c.Host},
		{"port", strconv.Itoa(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
		{"sslrootcert", c.SSLRootCert},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv[1] == "" && (kv[0] == "sslmode" || kv[0] == "sslrootcert") {
			continue
		}
		parts = append(parts, kv[0]+"="+dsnValue(kv[1]))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\\t") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Config selects and configures the database backend.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type" json:"type" jsonschema:"enum=sqlite,enum=postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite" json:"sqlite,omitempty"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres,omitempty"`
}

// ApplyDefaults fills unset fields for the selected backend.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = filepath.Join(configHome(), "fileserv", "controlplane.db")
		}
	case DatabaseTypePostgres:
		pg := &c.Postgres
		pg.Port = orDefault(pg.Port, defaultPostgresPort)
		pg.MaxOpenConns = orDefault(pg.MaxOpenConns, defaultPostgresMaxOpen)
		pg.MaxIdleConns = orDefault(pg.MaxIdleConns, defaultPostgresMaxIdle)
		if pg.SSLMode == "" {
			pg.SSLMode = defaultPostgresSSLMode
		}
	}
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Validate reports the first missing setting for the selected backend.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
		return nil
	case DatabaseTypePostgres:
		for _, req := range []struct{ name, value string }{
			{"host", c.Postgres.Host},
			{"database", c.Postgres.Database},
			{"user", c.Postgres.User},
		} {
			if req.value == "" {
				return fmt.Errorf("postgres %s is required", req.name)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
}

// dialector opens the GORM dialect for the backend, creating the SQLite
// parent directory on the way. SQLite runs in WAL mode with a busy timeout
// so readers are not blocked by the single writer.
func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.Type {
	case DatabaseTypeSQLite:
		path := c.SQLite.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
			path, sqliteBusyTimeoutMillis)
		return sqlite.Open(dsn), nil
	case DatabaseTypePostgres:
		return postgres.Open(c.Postgres.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.Type)
	}
}
