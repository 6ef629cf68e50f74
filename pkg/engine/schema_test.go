package engine

import (
	"errors"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	opts := DefaultOptions(t.TempDir())
	opts.AofRewritePercentage = 0
	e, err := Open(opts)
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNoSchemaAllowsEverything(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateNode("n1", map[string]string{"anything": "goes", "type": "user"}); err != nil {
		t.Fatalf("unschemaed write rejected: %v", err)
	}
}

func TestSchemaRejectsUnrecognizedFields(t *testing.T) {
	e := newTestEngine(t)
	if err := e.UpsertSchema(SchemaKindNode, []string{"type", "rating"}); err != nil {
		t.Fatal(err)
	}

	err := e.CreateNode("n1", map[string]string{"city": "Rio"})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(se.Fields) != 1 || se.Fields[0] != "city" {
		t.Errorf("unexpected rejected fields: %v", se.Fields)
	}
	if _, err := e.GetNode("n1", false); !errors.Is(err, ErrNotFound) {
		t.Error("rejected create must leave no node behind")
	}

	if err := e.CreateNode("n1", map[string]string{"type": "user"}); err != nil {
		t.Fatalf("recognized field rejected: %v", err)
	}
}

func TestSchemaUpsertReplacesFieldSet(t *testing.T) {
	e := newTestEngine(t)
	if err := e.UpsertSchema(SchemaKindNode, []string{"type", "rating"}); err != nil {
		t.Fatal(err)
	}
	if err := e.UpsertSchema(SchemaKindNode, []string{"type", "city"}); err != nil {
		t.Fatal(err)
	}

	if err := e.CreateNode("n1", map[string]string{"rating": "100"}); err == nil {
		t.Error("field from the replaced schema must no longer be recognized")
	}
	if err := e.CreateNode("n2", map[string]string{"city": "Rio"}); err != nil {
		t.Errorf("field from the current schema rejected: %v", err)
	}
}

func TestSchemaIsNotRetroactive(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateNode("n1", map[string]string{"legacy": "yes"}); err != nil {
		t.Fatal(err)
	}
	if err := e.UpsertSchema(SchemaKindNode, []string{"type"}); err != nil {
		t.Fatal(err)
	}

	n, err := e.GetNode("n1", false)
	if err != nil {
		t.Fatal(err)
	}
	if n.Data["legacy"] != "yes" {
		t.Error("existing data must survive a later schema registration")
	}
}

func TestSchemaKindsAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	if err := e.UpsertSchema(SchemaKindEdge, []string{"type"}); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateNode("n1", map[string]string{"free": "form"}); err != nil {
		t.Errorf("edge schema must not gate node writes: %v", err)
	}
}

func TestSchemaInvalidKind(t *testing.T) {
	e := newTestEngine(t)
	if err := e.UpsertSchema("vertex", []string{"type"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if _, err := e.Schema("vertex"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestSchemaReadBack(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Schema(SchemaKindNode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found before registration, got %v", err)
	}
	if err := e.UpsertSchema(SchemaKindNode, []string{"rating", "type", "rating"}); err != nil {
		t.Fatal(err)
	}
	fields, err := e.Schema(SchemaKindNode)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 2 || fields[0] != "rating" || fields[1] != "type" {
		t.Errorf("unexpected field set: %v", fields)
	}
}
