package engine

import "encoding/json"

// Well-known data fields with engine semantics.
const (
	// FieldType participates in the type indices of nodes and edges.
	FieldType = "type"
	// FieldLocation holds a "lat,lon" coordinate on a node.
	FieldLocation = "location"
	// FieldGeoHash is derived from FieldLocation on write and feeds the
	// geospatial index.
	FieldGeoHash = "geo_hash"
)

// Edge types with special semantics.
const (
	// EdgeTypeBlock edges are mirrored: both directions always exist
	// together.
	EdgeTypeBlock = "block"
	// EdgeTypeMute edges are strictly one-directional.
	EdgeTypeMute = "mute"
)

// Node is a graph node. Edges is populated only on hydrated reads and
// contains the node's outgoing edges.
type Node struct {
	ID    string            `json:"id"`
	Data  map[string]string `json:"data,omitempty"`
	Edges []Edge            `json:"edges,omitempty"`
}

// Edge is a directed edge; at most one exists per ordered (From, To) pair.
type Edge struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Data map[string]string `json:"data,omitempty"`
}

// Recommendation is one scored entry of a recommendation result. Score
// carries the ranking key: the numeric field value when ranking by a field,
// the distance in km when ranking by proximity, zero otherwise.
type Recommendation struct {
	ID    string            `json:"id"`
	Score float64           `json:"score"`
	Data  map[string]string `json:"data,omitempty"`
}

func encodeData(data map[string]string) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		// string maps always marshal
		return []byte("{}")
	}
	return raw
}

func decodeData(raw []byte) map[string]string {
	data := make(map[string]string)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &data)
	}
	return data
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
