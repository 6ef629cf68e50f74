package mcp

// --- Tool Arguments ---

type CreateNodeArgs struct {
	ID   string            `json:"id" jsonschema:"Unique ID for the node (e.g. 'user:mario'),required"`
	Data map[string]string `json:"data,omitempty" jsonschema:"Key/value fields. The 'type' field drives type listings; 'location' as 'lat,lon' enables geo queries."`
}

type CreateNodeResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ConnectArgs struct {
	From string            `json:"from" jsonschema:"Source node ID,required"`
	To   string            `json:"to" jsonschema:"Target node ID,required"`
	Data map[string]string `json:"data,omitempty" jsonschema:"Edge fields. A 'type' of 'block' creates a mirrored pair; 'mute' stays one-directional."`
}

type ConnectResult struct {
	Status string `json:"status"`
}

type BlockPairArgs struct {
	From string `json:"from" jsonschema:"required"`
	To   string `json:"to" jsonschema:"required"`
	// Undo removes an existing block pair instead of creating one.
	Undo bool `json:"undo,omitempty" jsonschema:"If true, unblock the pair instead of blocking it"`
}

type BlockPairResult struct {
	Status string `json:"status"`
}

type FindPathArgs struct {
	From string `json:"from" jsonschema:"Start node ID,required"`
	To   string `json:"to" jsonschema:"End node ID,required"`
}

type FindPathResult struct {
	Exists bool `json:"exists"`
}

type RecommendArgs struct {
	Start            string   `json:"start"`
	NodeType         string   `json:"node_type"`
	NumKey           string   `json:"num_key,omitempty"`
	Min              *float64 `json:"min,omitempty"`
	Max              *float64 `json:"max,omitempty"`
	RadiusKm         *float64 `json:"radius_km,omitempty"`
	ExcludeEdgeTypes []string `json:"exclude_edge_types,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

type RecommendResult struct {
	Results []string `json:"results"` // Formatted strings for the LLM
}

type NearbyArgs struct {
	NodeType string  `json:"node_type" jsonschema:"required"`
	Lat      float64 `json:"lat" jsonschema:"Latitude of the search center,required"`
	Lon      float64 `json:"lon" jsonschema:"Longitude of the search center,required"`
	RadiusKm float64 `json:"radius_km,omitempty" jsonschema:"Search radius in km (default 10)"`
	Limit    int     `json:"limit,omitempty"`
}

type NearbyResult struct {
	Results []string `json:"results"`
}
