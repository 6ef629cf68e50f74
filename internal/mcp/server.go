// Package mcp exposes the graph engine as a set of MCP tools, so LLM agents
// can build and query the graph over a stdio transport.
package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/elodb/elograph/pkg/engine"
)

func NewMCPServer(eng *engine.Engine) *mcp.Server {
	service := NewService(eng)

	// Create Server instance
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "EloGraph",
		Version: "0.2.0",
	}, nil) // Options can be nil for default

	// Register Tools using the Generic AddTool which inspects structs!

	mcp.AddTool(s, &mcp.Tool{
		Name:        "create_node",
		Description: "Create a graph node with free-form key/value data (e.g. a user, a team, a place).",
	}, service.CreateNode)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "connect_nodes",
		Description: "Create a directed edge between two existing nodes.",
	}, service.Connect)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "block_pair",
		Description: "Block (or unblock) two nodes. Blocking always applies in both directions.",
	}, service.BlockPair)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_path",
		Description: "Check whether one node can reach another within a few hops of directed edges.",
	}, service.FindPath)

	// The recommend schema is written out by hand: its numeric bounds are
	// nullable and the struct tags cannot express that.
	mcp.AddTool(s, &mcp.Tool{
		Name:        "recommend",
		Description: "Rank candidate nodes for a start node, filtered by numeric range, radius and relationship exclusions.",
		InputSchema: recommendSchema(),
	}, service.Recommend)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "nearby",
		Description: "Find nodes of a type within a radius of a coordinate.",
	}, service.Nearby)

	return s
}

func recommendSchema() *jsonschema.Schema {
	number := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Types: []string{"number", "null"}, Description: desc}
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"start":     {Type: "string", Description: "Node ID to recommend for"},
			"node_type": {Type: "string", Description: "Type of nodes to consider as candidates"},
			"num_key":   {Type: "string", Description: "Numeric data field to filter and rank by (descending)"},
			"min":       number("Inclusive lower bound for num_key"),
			"max":       number("Inclusive upper bound for num_key"),
			"radius_km": number("Restrict candidates to this distance from the start node's location"),
			"exclude_edge_types": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "Drop candidates linked to the start by these edge types, in either direction (e.g. ['block','mute'])",
			},
			"limit": {Type: "integer", Description: "Max results (default 5)"},
		},
		Required: []string{"start", "node_type"},
	}
}
