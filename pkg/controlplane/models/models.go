// Package models provides the persisted domain types of the fileserv
// control plane: storage pools, share zones, fine-grained permissions,
// share links, users and groups.
//
// The types carry GORM annotations and are the single source of truth for
// the database schema. Validation methods enforce the structural invariants
// that do not need filesystem or cross-record access; the registry layers
// the remaining invariants on top.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Group{},
		&StoragePool{},
		&ShareZone{},
		&Permission{},
		&ShareLink{},
	}
}

// WildcardSubject on a zone allow list stands for every authenticated user.
const WildcardSubject = "*"

// StringList is a string slice persisted as a JSON array in a text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// Contains reports whether s is in the list.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of values is in the list.
func (l StringList) ContainsAny(values []string) bool {
	for _, v := range values {
		if l.Contains(v) {
			return true
		}
	}
	return false
}

// Normalized returns a trimmed copy without empty or duplicate entries.
func (l StringList) Normalized() StringList {
	out := make(StringList, 0, len(l))
	seen := make(map[string]struct{}, len(l))
	for _, v := range l {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// scanJSON decodes a JSON text column into dst. NULL and empty values leave
// dst at its zero value.
func scanJSON(src any, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// jsonValue encodes v for a JSON text column.
func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
