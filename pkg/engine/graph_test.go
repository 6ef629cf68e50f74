package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func mustCreateNode(t *testing.T, e *Engine, id string, data map[string]string) {
	t.Helper()
	if err := e.CreateNode(id, data); err != nil {
		t.Fatalf("failed to create node %q: %v", id, err)
	}
}

func TestCreateNodeConflict(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "n1", nil)
	if err := e.CreateNode("n1", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCreateNodeEmptyID(t *testing.T) {
	e := newTestEngine(t)
	if err := e.CreateNode("", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestNodeFieldUpdates(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "n1", map[string]string{"type": "user", "name": "ada"})

	if err := e.SetNodeField("n1", "name", "grace"); err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateNodeFields("n1", map[string]string{"city": "Rio", "name": "grace h"}); err != nil {
		t.Fatal(err)
	}

	n, err := e.GetNode("n1", false)
	if err != nil {
		t.Fatal(err)
	}
	if n.Data["name"] != "grace h" || n.Data["city"] != "Rio" || n.Data["type"] != "user" {
		t.Errorf("merge produced unexpected data: %v", n.Data)
	}

	if err := e.SetNodeField("ghost", "name", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestTypeChangeMovesTypeIndex(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "n1", map[string]string{"type": "user"})
	if err := e.SetNodeField("n1", "type", "bot"); err != nil {
		t.Fatal(err)
	}

	users, err := e.ListNodes("user", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Errorf("node still listed under its old type: %v", users)
	}
	bots, err := e.ListNodes("bot", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(bots) != 1 || bots[0].ID != "n1" {
		t.Errorf("node missing under its new type: %v", bots)
	}
}

func TestLocationDerivesGeohash(t *testing.T) {
	e := newTestEngine(t)
	// Sao Paulo: geohash 6gyf...
	mustCreateNode(t, e, "n1", map[string]string{"type": "team", "location": "-23.5505,-46.6333"})

	n, err := e.GetNode("n1", false)
	if err != nil {
		t.Fatal(err)
	}
	hash := n.Data[FieldGeoHash]
	if len(hash) != 9 || hash[:4] != "6gyf" {
		t.Errorf("unexpected derived geohash %q", hash)
	}

	// An unparsable location clears the derived hash.
	if err := e.SetNodeField("n1", "location", "not-a-point"); err != nil {
		t.Fatal(err)
	}
	n, _ = e.GetNode("n1", false)
	if _, ok := n.Data[FieldGeoHash]; ok {
		t.Error("geohash must be cleared when the location stops parsing")
	}
}

func TestCreateEdge(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": "follows"}); err != nil {
		t.Fatal(err)
	}
	if err := e.CreateEdge("a", "b", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict on duplicate pair, got %v", err)
	}
	// Direction matters: the reverse pair is free.
	if err := e.CreateEdge("b", "a", map[string]string{"type": "follows"}); err != nil {
		t.Errorf("reverse pair rejected: %v", err)
	}
}

func TestCreateEdgeMissingEndpointLeavesNoIndexRows(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)

	err := e.CreateEdge("a", "ghost", map[string]string{"type": "follows"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	edges, err := e.ListEdges("follows", "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("failed create left index rows: %v", edges)
	}
	n, err := e.GetNode("a", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Edges) != 0 {
		t.Errorf("failed create left adjacency rows: %v", n.Edges)
	}
}

func TestMuteEdgeIsOneDirectional(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": EdgeTypeMute}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetEdge("b", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mute edge must not be mirrored, got %v", err)
	}
}

func TestBlockEdgeIsMirrored(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.Block("a", "b"); err != nil {
		t.Fatal(err)
	}
	mirror, err := e.GetEdge("b", "a")
	if err != nil {
		t.Fatalf("mirror edge missing: %v", err)
	}
	if mirror.Data[FieldType] != EdgeTypeBlock {
		t.Errorf("mirror has type %q", mirror.Data[FieldType])
	}

	// Idempotent: no error, no duplicates.
	if err := e.Block("a", "b"); err != nil {
		t.Fatal(err)
	}
	blocks, err := e.ListEdges(EdgeTypeBlock, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Errorf("expected exactly the mirrored pair, got %d edges", len(blocks))
	}
}

func TestCreateEdgeWithBlockTypeMirrors(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": EdgeTypeBlock, "reason": "spam"}); err != nil {
		t.Fatal(err)
	}
	mirror, err := e.GetEdge("b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if mirror.Data["reason"] != "spam" {
		t.Errorf("mirror did not copy the edge data: %v", mirror.Data)
	}
}

func TestBlockOverwritesExistingEdge(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": "follows"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Block("a", "b"); err != nil {
		t.Fatal(err)
	}

	edge, err := e.GetEdge("a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if edge.Data[FieldType] != EdgeTypeBlock {
		t.Errorf("block did not overwrite the edge type: %v", edge.Data)
	}
	follows, err := e.ListEdges("follows", "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(follows) != 0 {
		t.Errorf("overwritten edge still indexed under its old type: %v", follows)
	}
}

func TestUnblockRemovesBothDirections(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.Block("a", "b"); err != nil {
		t.Fatal(err)
	}
	if err := e.Unblock("a", "b"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.GetEdge("a", "b"); !errors.Is(err, ErrNotFound) {
		t.Error("forward block edge survived unblock")
	}
	if _, err := e.GetEdge("b", "a"); !errors.Is(err, ErrNotFound) {
		t.Error("mirror block edge survived unblock")
	}

	// No-op when nothing is blocked.
	if err := e.Unblock("a", "b"); err != nil {
		t.Errorf("unblock of unblocked pair must succeed: %v", err)
	}
}

func TestUnblockLeavesOtherEdgeTypesAlone(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": EdgeTypeMute}); err != nil {
		t.Fatal(err)
	}
	if err := e.Unblock("a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetEdge("a", "b"); err != nil {
		t.Errorf("unblock removed a non-block edge: %v", err)
	}
}

func TestEdgeFieldUpdateDoesNotRemirror(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	if err := e.CreateEdge("a", "b", map[string]string{"type": "follows"}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetEdgeField("a", "b", "type", EdgeTypeBlock); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetEdge("b", "a"); !errors.Is(err, ErrNotFound) {
		t.Error("field edit must not create a mirror")
	}

	if err := e.UpdateEdgeFields("a", "ghost", map[string]string{"w": "1"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestConcurrentBlocksConverge(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	mustCreateNode(t, e, "b", nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = e.Block("a", "b") }()
	go func() { defer wg.Done(); errs[1] = e.Block("b", "a") }()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d failed: %v", i, err)
		}
	}

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		edge, err := e.GetEdge(pair[0], pair[1])
		if err != nil {
			t.Fatalf("direction %v missing: %v", pair, err)
		}
		if edge.Data[FieldType] != EdgeTypeBlock {
			t.Errorf("direction %v has type %q", pair, edge.Data[FieldType])
		}
	}
	blocks, err := e.ListEdges(EdgeTypeBlock, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Errorf("expected one mirrored pair, got %d block edges", len(blocks))
	}
}

func TestHydratedNodeCarriesOutgoingEdges(t *testing.T) {
	e := newTestEngine(t)
	mustCreateNode(t, e, "a", nil)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("t%d", i)
		mustCreateNode(t, e, id, nil)
		if err := e.CreateEdge("a", id, map[string]string{"type": "member"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := e.GetNode("a", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Edges) != 3 {
		t.Fatalf("expected 3 outgoing edges, got %d", len(n.Edges))
	}
	for _, edge := range n.Edges {
		if edge.From != "a" || edge.Data["type"] != "member" {
			t.Errorf("unexpected hydrated edge: %+v", edge)
		}
	}

	lean, err := e.GetNode("a", false)
	if err != nil {
		t.Fatal(err)
	}
	if lean.Edges != nil {
		t.Error("non-hydrated node must not carry edges")
	}
}
