// Package client provides a Go client for interacting with the elograph API.
//
// It offers a type-safe way to perform all major operations, including:
//   - Schema registration.
//   - Node and edge lifecycle (create, single-field set, multi-field merge).
//   - Block/unblock pairs and connectivity checks.
//   - Recommendation and nearby queries.
//   - System administration tasks (journal rewrite).
//
// The client handles HTTP communication, JSON serialization/deserialization, and
// standardized error handling.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Custom Errors ---

// APIError represents an error returned by the elograph API (status >= 400).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// --- Domain Types ---

// Node mirrors the server's node representation.
type Node struct {
	ID    string            `json:"id"`
	Data  map[string]string `json:"data,omitempty"`
	Edges []Edge            `json:"edges,omitempty"`
}

// Edge mirrors the server's edge representation.
type Edge struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Data map[string]string `json:"data,omitempty"`
}

// Recommendation is one scored entry of a recommendation result.
type Recommendation struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Data  map[string]string `json:"data,omitempty"`
}

type pathResponse struct {
	Exists bool `json:"exists"`
}

// --- Client ---

// Client is the Go client for interacting with elograph.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new elograph client. apiKey may be empty when the server
// runs without authentication.
func New(host string, port int, apiKey string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// jsonRequest is a helper method to execute all requests to the API.
// It handles JSON serialization, HTTP calls, and error management.
func (c *Client) jsonRequest(method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		if json.Unmarshal(respBody, &errResp) == nil && errResp["error"] != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp["error"]}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	return respBody, nil
}

// --- Schema Methods ---

// UpsertSchema replaces the recognized field set for a kind ("node" or "edge").
func (c *Client) UpsertSchema(kind string, fields []string) error {
	payload := map[string]any{"kind": kind, "fields": fields}
	_, err := c.jsonRequest(http.MethodPost, "/schema", payload)
	return err
}

// --- Node Methods ---

// CreateNode creates a node with optional initial data.
func (c *Client) CreateNode(id string, data map[string]string) error {
	payload := map[string]any{"id": id}
	if len(data) > 0 {
		payload["data"] = data
	}
	_, err := c.jsonRequest(http.MethodPost, "/nodes", payload)
	return err
}

// SetNodeData sets a single data field on an existing node.
func (c *Client) SetNodeData(id, key, value string) error {
	payload := map[string]string{"key": key, "value": value}
	_, err := c.jsonRequest(http.MethodPut, "/nodes/"+url.PathEscape(id)+"/data", payload)
	return err
}

// UpdateNode merges multiple data fields into an existing node.
func (c *Client) UpdateNode(id string, data map[string]string) error {
	payload := map[string]any{"data": data}
	_, err := c.jsonRequest(http.MethodPatch, "/nodes/"+url.PathEscape(id), payload)
	return err
}

// GetNode fetches a node, including its outgoing edges.
func (c *Client) GetNode(id string) (*Node, error) {
	respBody, err := c.jsonRequest(http.MethodGet, "/nodes/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var node Node
	if err := json.Unmarshal(respBody, &node); err != nil {
		return nil, fmt.Errorf("failed to parse node response: %w", err)
	}
	return &node, nil
}

// ListNodes lists nodes, optionally filtered by type. An empty type lists
// every node.
func (c *Client) ListNodes(nodeType string) ([]Node, error) {
	endpoint := "/nodes"
	if nodeType != "" {
		endpoint += "?type=" + url.QueryEscape(nodeType)
	}
	respBody, err := c.jsonRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	if err := json.Unmarshal(respBody, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse node list: %w", err)
	}
	return nodes, nil
}

// --- Edge Methods ---

// CreateEdge creates a directed edge with optional data.
func (c *Client) CreateEdge(from, to string, data map[string]string) error {
	payload := map[string]any{"from": from, "to": to}
	if len(data) > 0 {
		payload["data"] = data
	}
	_, err := c.jsonRequest(http.MethodPost, "/edges", payload)
	return err
}

// SetEdgeData sets a single data field on an existing edge.
func (c *Client) SetEdgeData(from, to, key, value string) error {
	payload := map[string]string{"from": from, "to": to, "key": key, "value": value}
	_, err := c.jsonRequest(http.MethodPut, "/edges", payload)
	return err
}

// UpdateEdge merges multiple data fields into an existing edge.
func (c *Client) UpdateEdge(from, to string, data map[string]string) error {
	payload := map[string]any{"from": from, "to": to, "data": data}
	_, err := c.jsonRequest(http.MethodPatch, "/edges", payload)
	return err
}

// ListEdges lists edges filtered by type and optionally by endpoint.
func (c *Client) ListEdges(edgeType, from, to string) ([]Edge, error) {
	params := url.Values{}
	if edgeType != "" {
		params.Set("type", edgeType)
	}
	if from != "" {
		params.Set("from", from)
	}
	if to != "" {
		params.Set("to", to)
	}
	endpoint := "/edges"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	respBody, err := c.jsonRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var edges []Edge
	if err := json.Unmarshal(respBody, &edges); err != nil {
		return nil, fmt.Errorf("failed to parse edge list: %w", err)
	}
	return edges, nil
}

// --- Block Methods ---

// Block creates a mirrored pair of block edges between two nodes.
func (c *Client) Block(from, to string) error {
	_, err := c.jsonRequest(http.MethodPost, "/blocks", map[string]string{"from": from, "to": to})
	return err
}

// Unblock removes the mirrored block pair between two nodes.
func (c *Client) Unblock(from, to string) error {
	_, err := c.jsonRequest(http.MethodDelete, "/blocks", map[string]string{"from": from, "to": to})
	return err
}

// --- Query Methods ---

// PathExists reports whether `to` is reachable from `from` within a few hops.
func (c *Client) PathExists(from, to string) (bool, error) {
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)
	respBody, err := c.jsonRequest(http.MethodGet, "/path?"+params.Encode(), nil)
	if err != nil {
		return false, err
	}
	var result pathResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, fmt.Errorf("failed to parse path response: %w", err)
	}
	return result.Exists, nil
}

// RecommendParams parameterizes a recommendation query. Nil pointer fields
// are omitted from the request.
type RecommendParams struct {
	Start            string
	NodeType         string
	NumKey           string
	Min              *float64
	Max              *float64
	RadiusKm         *float64
	ExcludeEdgeTypes []string
	Limit            int
}

// Recommendations fetches ranked candidate nodes for a start node.
func (c *Client) Recommendations(p RecommendParams) ([]Recommendation, error) {
	params := url.Values{}
	params.Set("start", p.Start)
	params.Set("type", p.NodeType)
	if p.NumKey != "" {
		params.Set("num_key", p.NumKey)
	}
	if p.Min != nil {
		params.Set("min", strconv.FormatFloat(*p.Min, 'f', -1, 64))
	}
	if p.Max != nil {
		params.Set("max", strconv.FormatFloat(*p.Max, 'f', -1, 64))
	}
	if p.RadiusKm != nil {
		params.Set("radius_km", strconv.FormatFloat(*p.RadiusKm, 'f', -1, 64))
	}
	if len(p.ExcludeEdgeTypes) > 0 {
		params.Set("exclude_edge_types", strings.Join(p.ExcludeEdgeTypes, ","))
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	respBody, err := c.jsonRequest(http.MethodGet, "/recommendations?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var recs []Recommendation
	if err := json.Unmarshal(respBody, &recs); err != nil {
		return nil, fmt.Errorf("failed to parse recommendations: %w", err)
	}
	return recs, nil
}

// NearbyParams parameterizes a proximity query. Supply either GeoHashPrefix
// or Lat, Lon and RadiusKm.
type NearbyParams struct {
	NodeType      string
	GeoHashPrefix string
	Lat           *float64
	Lon           *float64
	RadiusKm      *float64
	Limit         int
}

// Nearby fetches nodes of a type inside a geohash cell or an exact radius.
func (c *Client) Nearby(p NearbyParams) ([]Node, error) {
	params := url.Values{}
	params.Set("type", p.NodeType)
	if p.GeoHashPrefix != "" {
		params.Set("geo_hash_prefix", p.GeoHashPrefix)
	}
	if p.Lat != nil {
		params.Set("lat", strconv.FormatFloat(*p.Lat, 'f', -1, 64))
	}
	if p.Lon != nil {
		params.Set("lon", strconv.FormatFloat(*p.Lon, 'f', -1, 64))
	}
	if p.RadiusKm != nil {
		params.Set("radius_km", strconv.FormatFloat(*p.RadiusKm, 'f', -1, 64))
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	respBody, err := c.jsonRequest(http.MethodGet, "/nearby?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	if err := json.Unmarshal(respBody, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse nearby response: %w", err)
	}
	return nodes, nil
}

// --- System Methods ---

// RewriteAOF asks the server to compact its journal.
func (c *Client) RewriteAOF() error {
	_, err := c.jsonRequest(http.MethodPost, "/system/aof-rewrite", nil)
	return err
}
