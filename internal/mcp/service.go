package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/elodb/elograph/pkg/engine"
)

type Service struct {
	engine *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{engine: eng}
}

// --- Tool Handlers ---

func (s *Service) CreateNode(ctx context.Context, req *mcp.CallToolRequest, args CreateNodeArgs) (*mcp.CallToolResult, CreateNodeResult, error) {
	if err := s.engine.CreateNode(args.ID, args.Data); err != nil {
		return nil, CreateNodeResult{}, err
	}
	return nil, CreateNodeResult{ID: args.ID, Status: "created"}, nil
}

func (s *Service) Connect(ctx context.Context, req *mcp.CallToolRequest, args ConnectArgs) (*mcp.CallToolResult, ConnectResult, error) {
	if err := s.engine.CreateEdge(args.From, args.To, args.Data); err != nil {
		return nil, ConnectResult{}, err
	}
	return nil, ConnectResult{Status: "connected"}, nil
}

func (s *Service) BlockPair(ctx context.Context, req *mcp.CallToolRequest, args BlockPairArgs) (*mcp.CallToolResult, BlockPairResult, error) {
	if args.Undo {
		if err := s.engine.Unblock(args.From, args.To); err != nil {
			return nil, BlockPairResult{}, err
		}
		return nil, BlockPairResult{Status: "unblocked"}, nil
	}
	if err := s.engine.Block(args.From, args.To); err != nil {
		return nil, BlockPairResult{}, err
	}
	return nil, BlockPairResult{Status: "blocked"}, nil
}

func (s *Service) FindPath(ctx context.Context, req *mcp.CallToolRequest, args FindPathArgs) (*mcp.CallToolResult, FindPathResult, error) {
	exists, err := s.engine.PathExists(args.From, args.To)
	if err != nil {
		return nil, FindPathResult{}, err
	}
	return nil, FindPathResult{Exists: exists}, nil
}

func (s *Service) Recommend(ctx context.Context, req *mcp.CallToolRequest, args RecommendArgs) (*mcp.CallToolResult, RecommendResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 5
	}
	recs, err := s.engine.Recommendations(engine.RecommendOptions{
		Start:            args.Start,
		NodeType:         args.NodeType,
		NumKey:           args.NumKey,
		Min:              args.Min,
		Max:              args.Max,
		RadiusKm:         args.RadiusKm,
		ExcludeEdgeTypes: args.ExcludeEdgeTypes,
		Limit:            limit,
		Hydrate:          true,
	})
	if err != nil {
		return nil, RecommendResult{}, err
	}

	// Format for the LLM: one line per candidate.
	results := make([]string, 0, len(recs))
	for _, rec := range recs {
		results = append(results, formatCandidate(rec.ID, rec.Score, rec.Data))
	}
	return nil, RecommendResult{Results: results}, nil
}

func (s *Service) Nearby(ctx context.Context, req *mcp.CallToolRequest, args NearbyArgs) (*mcp.CallToolResult, NearbyResult, error) {
	radius := args.RadiusKm
	if radius <= 0 {
		radius = 10
	}
	nodes, err := s.engine.Nearby(engine.NearbyOptions{
		NodeType: args.NodeType,
		Lat:      &args.Lat,
		Lon:      &args.Lon,
		RadiusKm: &radius,
		Limit:    args.Limit,
		Hydrate:  true,
	})
	if err != nil {
		return nil, NearbyResult{}, err
	}

	results := make([]string, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, formatCandidate(n.ID, 0, n.Data))
	}
	return nil, NearbyResult{Results: results}, nil
}

func formatCandidate(id string, score float64, data map[string]string) string {
	var sb strings.Builder
	sb.WriteString(id)
	if score != 0 {
		fmt.Fprintf(&sb, " (score: %.3f)", score)
	}
	if len(data) > 0 {
		pairs := make([]string, 0, len(data))
		for k, v := range data {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
		}
		sort.Strings(pairs)
		sb.WriteString(" [" + strings.Join(pairs, ", ") + "]")
	}
	return sb.String()
}
