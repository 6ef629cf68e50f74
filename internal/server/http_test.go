package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elodb/elograph/pkg/engine"
)

const testAPIKey = "test-secret-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	opts := engine.DefaultOptions(t.TempDir())
	eng, err := engine.Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	s := NewServer(eng, cfg)

	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("x-api-key", testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, raw)
	}
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestAuthGating(t *testing.T) {
	ts := newTestServer(t)

	// Healthz and metrics are open.
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s expected 200 without key, got %d", path, resp.StatusCode)
		}
	}

	// API endpoints are not.
	resp, err := http.Get(ts.URL + "/nodes")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", resp.StatusCode)
	}

	expectStatus(t, doRequest(t, ts, "GET", "/nodes", nil), http.StatusOK)
}

func TestNodeLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	expectStatus(t, doRequest(t, ts, "POST", "/nodes",
		NodeCreateRequest{ID: "u1", Data: map[string]string{"type": "user", "name": "ada"}}),
		http.StatusCreated)

	// Duplicate id conflicts.
	expectStatus(t, doRequest(t, ts, "POST", "/nodes",
		NodeCreateRequest{ID: "u1"}), http.StatusConflict)

	expectStatus(t, doRequest(t, ts, "PUT", "/nodes/u1/data",
		NodeFieldRequest{Key: "name", Value: "grace"}), http.StatusNoContent)
	expectStatus(t, doRequest(t, ts, "PATCH", "/nodes/u1",
		NodePatchRequest{Data: map[string]string{"city": "Rio"}}), http.StatusNoContent)

	resp := doRequest(t, ts, "GET", "/nodes/u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get returned %d", resp.StatusCode)
	}
	node := decodeBody[engine.Node](t, resp)
	if node.Data["name"] != "grace" || node.Data["city"] != "Rio" {
		t.Errorf("unexpected node data: %v", node.Data)
	}

	expectStatus(t, doRequest(t, ts, "GET", "/nodes/ghost", nil), http.StatusNotFound)
}

func TestEdgeAndBlockFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	for _, id := range []string{"a", "b"} {
		expectStatus(t, doRequest(t, ts, "POST", "/nodes", NodeCreateRequest{ID: id}), http.StatusCreated)
	}

	expectStatus(t, doRequest(t, ts, "POST", "/edges",
		EdgeCreateRequest{From: "a", To: "ghost"}), http.StatusNotFound)
	expectStatus(t, doRequest(t, ts, "POST", "/edges",
		EdgeCreateRequest{From: "a", To: "b", Data: map[string]string{"type": "follows"}}),
		http.StatusCreated)

	expectStatus(t, doRequest(t, ts, "POST", "/blocks",
		BlockRequest{From: "a", To: "b"}), http.StatusNoContent)

	resp := doRequest(t, ts, "GET", "/edges?type=block", nil)
	edges := decodeBody[[]engine.Edge](t, resp)
	if len(edges) != 2 {
		t.Fatalf("expected mirrored block pair, got %d edges", len(edges))
	}

	expectStatus(t, doRequest(t, ts, "DELETE", "/blocks",
		BlockRequest{From: "b", To: "a"}), http.StatusNoContent)
	resp = doRequest(t, ts, "GET", "/edges?type=block", nil)
	edges = decodeBody[[]engine.Edge](t, resp)
	if len(edges) != 0 {
		t.Errorf("block edges survived unblock: %v", edges)
	}
}

func TestSchemaViolationMapsTo422(t *testing.T) {
	ts := newTestServer(t)

	expectStatus(t, doRequest(t, ts, "POST", "/schema",
		SchemaUpsertRequest{Kind: "node", Fields: []string{"type", "rating"}}),
		http.StatusNoContent)

	expectStatus(t, doRequest(t, ts, "POST", "/nodes",
		NodeCreateRequest{ID: "n1", Data: map[string]string{"city": "Rio"}}),
		http.StatusUnprocessableEntity)

	resp := doRequest(t, ts, "GET", "/schema/node", nil)
	body := decodeBody[map[string]any](t, resp)
	if body["kind"] != "node" {
		t.Errorf("unexpected schema response: %v", body)
	}
}

func TestPathAndRecommendationsOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	expectStatus(t, doRequest(t, ts, "POST", "/nodes",
		NodeCreateRequest{ID: "u1", Data: map[string]string{"type": "user"}}), http.StatusCreated)
	for _, rating := range []string{"250", "520", "700", "950"} {
		expectStatus(t, doRequest(t, ts, "POST", "/nodes",
			NodeCreateRequest{ID: "team-" + rating, Data: map[string]string{"type": "team", "rating": rating}}),
			http.StatusCreated)
	}
	expectStatus(t, doRequest(t, ts, "POST", "/edges",
		EdgeCreateRequest{From: "u1", To: "team-250", Data: map[string]string{"type": "follows"}}),
		http.StatusCreated)

	resp := doRequest(t, ts, "GET", "/path?from=u1&to=team-250", nil)
	path := decodeBody[PathResponse](t, resp)
	if !path.Exists {
		t.Error("expected path to exist")
	}

	resp = doRequest(t, ts, "GET", "/recommendations?start=u1&type=team&num_key=rating&min=300&max=900", nil)
	recs := decodeBody[[]engine.Recommendation](t, resp)
	if len(recs) != 2 || recs[0].ID != "team-700" || recs[1].ID != "team-520" {
		t.Errorf("unexpected recommendations: %+v", recs)
	}

	expectStatus(t, doRequest(t, ts, "GET", "/recommendations?start=u1&type=team&limit=0", nil),
		http.StatusBadRequest)
	expectStatus(t, doRequest(t, ts, "GET", "/recommendations?start=ghost&type=team", nil),
		http.StatusNotFound)
}

func TestNearbyOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	coords := map[string]string{
		"gym-near": "-23.5510,-46.6340",
		"gym-far":  "-22.9068,-43.1729",
	}
	for id, loc := range coords {
		expectStatus(t, doRequest(t, ts, "POST", "/nodes",
			NodeCreateRequest{ID: id, Data: map[string]string{"type": "gym", "location": loc}}),
			http.StatusCreated)
	}

	resp := doRequest(t, ts, "GET", "/nearby?type=gym&lat=-23.5505&lon=-46.6333&radius_km=10", nil)
	nodes := decodeBody[[]engine.Node](t, resp)
	if len(nodes) != 1 || nodes[0].ID != "gym-near" {
		t.Errorf("unexpected nearby result: %+v", nodes)
	}

	expectStatus(t, doRequest(t, ts, "GET", "/nearby?type=gym", nil), http.StatusBadRequest)
}

func TestHealthzReportsStats(t *testing.T) {
	ts := newTestServer(t)
	expectStatus(t, doRequest(t, ts, "POST", "/nodes", NodeCreateRequest{ID: "n1"}), http.StatusCreated)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("unexpected healthz body: %v", body)
	}
	if fmt.Sprintf("%v", body["keys"]) == "0" {
		t.Error("healthz should report stored keys")
	}
}
