package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Schema kinds. A schema constrains which data fields callers may write on
// the corresponding record kind.
const (
	SchemaKindNode = "node"
	SchemaKindEdge = "edge"
)

// getter is satisfied by both snapshots and open transactions.
type getter interface {
	Get(key string) ([]byte, bool)
}

// UpsertSchema replaces the allowed field set for a record kind. An empty
// field list is valid and rejects every caller-supplied field. Field names
// are stored sorted and deduplicated.
func (e *Engine) UpsertSchema(kind string, fields []string) error {
	if kind != SchemaKindNode && kind != SchemaKindEdge {
		return invalidf("unknown schema kind %q", kind)
	}

	seen := make(map[string]struct{}, len(fields))
	clean := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return invalidf("schema field names must be non-empty")
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		clean = append(clean, f)
	}
	sort.Strings(clean)

	value, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	tx := e.store.Write()
	defer tx.Discard()
	tx.Set(schemaKey(kind), value)
	return e.commit(tx)
}

// Schema returns the allowed field set for a record kind, or ErrNotFound if
// no schema has been registered for it.
func (e *Engine) Schema(kind string) ([]string, error) {
	if kind != SchemaKindNode && kind != SchemaKindEdge {
		return nil, invalidf("unknown schema kind %q", kind)
	}
	sn := e.store.Read()
	raw, ok := sn.Get(schemaKey(kind))
	if !ok {
		return nil, notFoundf("no schema registered for kind %q", kind)
	}
	var fields []string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: corrupt schema record: %v", ErrStoreFailure, err)
	}
	return fields, nil
}

// validateFields checks caller-supplied field names against the registered
// schema for kind, if any. Absence of a schema means everything is allowed.
// Engine-derived fields are written after validation and are never checked.
func validateFields(g getter, kind string, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	raw, ok := g.Get(schemaKey(kind))
	if !ok {
		return nil
	}
	var allowed []string
	if err := json.Unmarshal(raw, &allowed); err != nil {
		return fmt.Errorf("%w: corrupt schema record: %v", ErrStoreFailure, err)
	}
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}

	var bad []string
	for name := range data {
		if _, ok := set[name]; !ok {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return &SchemaError{Kind: kind, Fields: bad}
	}
	return nil
}
