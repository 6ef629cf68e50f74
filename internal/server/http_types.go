package server

// SchemaUpsertRequest defines the body for schema registration.
type SchemaUpsertRequest struct {
	Kind   string   `json:"kind"`
	Fields []string `json:"fields"`
}

// NodeCreateRequest defines the body for node creation.
type NodeCreateRequest struct {
	ID   string            `json:"id"`
	Data map[string]string `json:"data,omitempty"`
}

// NodeFieldRequest defines the body for setting a single node field.
type NodeFieldRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NodePatchRequest defines the body for merging multiple node fields.
type NodePatchRequest struct {
	Data map[string]string `json:"data"`
}

// EdgeCreateRequest defines the body for edge creation.
type EdgeCreateRequest struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Data map[string]string `json:"data,omitempty"`
}

// EdgeFieldRequest defines the body for setting a single edge field.
type EdgeFieldRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EdgePatchRequest defines the body for merging multiple edge fields.
type EdgePatchRequest struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Data map[string]string `json:"data"`
}

// BlockRequest defines the body for POST and DELETE /blocks.
type BlockRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PathResponse is the result of a connectivity check.
type PathResponse struct {
	Exists bool `json:"exists"`
}

// StatusResponse is the generic acknowledgement body.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
