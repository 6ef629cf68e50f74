package engine

import (
	"sort"
	"strconv"

	"github.com/elodb/elograph/pkg/core"
	"github.com/elodb/elograph/pkg/geo"
)

// maxPathDepth bounds the breadth-first search of PathExists. Connectivity
// checks target direct or near-direct links, not general reachability.
const maxPathDepth = 4

// GetNode fetches a node by id. With hydrate the node carries its outgoing
// edges, without it only id and data.
func (e *Engine) GetNode(id string, hydrate bool) (Node, error) {
	sn := e.store.Read()
	raw, ok := sn.Get(nodeKey(id))
	if !ok {
		return Node{}, notFoundf("node %q", id)
	}
	n := Node{ID: id, Data: decodeData(raw)}
	if hydrate {
		n.Edges = outgoingEdges(sn, id)
	}
	return n, nil
}

// GetEdge fetches the edge for an ordered pair.
func (e *Engine) GetEdge(from, to string) (Edge, error) {
	sn := e.store.Read()
	raw, ok := sn.Get(edgeKey(from, to))
	if !ok {
		return Edge{}, notFoundf("edge %q -> %q", from, to)
	}
	return Edge{From: from, To: to, Data: decodeData(raw)}, nil
}

// ListNodes returns all nodes of a type, ascending by id; an empty type
// lists every node. Without hydrate each entry carries only the id.
func (e *Engine) ListNodes(typ string, hydrate bool) ([]Node, error) {
	sn := e.store.Read()

	appendNode := func(nodes []Node, id string) []Node {
		n := Node{ID: id}
		if hydrate {
			if raw, ok := sn.Get(nodeKey(id)); ok {
				n.Data = decodeData(raw)
			}
			n.Edges = outgoingEdges(sn, id)
		}
		return append(nodes, n)
	}

	nodes := []Node{}
	if typ == "" {
		sn.AscendPrefix(prefixNode, func(key string, _ []byte) bool {
			parts, ok := splitComponents(key, prefixNode)
			if ok && len(parts) == 1 {
				nodes = appendNode(nodes, parts[0])
			}
			return true
		})
		return nodes, nil
	}
	sn.AscendPrefix(nodeTypePrefix(typ), func(key string, _ []byte) bool {
		parts, ok := splitComponents(key, prefixNodeType)
		if ok && len(parts) == 2 {
			nodes = appendNode(nodes, parts[1])
		}
		return true
	})
	return nodes, nil
}

// ListEdges returns all edges of a type, optionally narrowed to a from or
// to endpoint; an empty type lists every edge. Without hydrate each entry
// carries only its endpoints.
func (e *Engine) ListEdges(typ, from, to string, hydrate bool) ([]Edge, error) {
	sn := e.store.Read()

	appendEdge := func(edges []Edge, f, t string) []Edge {
		if (from != "" && f != from) || (to != "" && t != to) {
			return edges
		}
		edge := Edge{From: f, To: t}
		if hydrate {
			if raw, ok := sn.Get(edgeKey(f, t)); ok {
				edge.Data = decodeData(raw)
			}
		}
		return append(edges, edge)
	}

	edges := []Edge{}
	if typ == "" {
		sn.AscendPrefix(prefixEdge, func(key string, _ []byte) bool {
			parts, ok := splitComponents(key, prefixEdge)
			if ok && len(parts) == 2 {
				edges = appendEdge(edges, parts[0], parts[1])
			}
			return true
		})
		return edges, nil
	}
	sn.AscendPrefix(edgeTypePrefix(typ), func(key string, _ []byte) bool {
		parts, ok := splitComponents(key, prefixEdgeType)
		if ok && len(parts) == 3 {
			edges = appendEdge(edges, parts[1], parts[2])
		}
		return true
	})
	return edges, nil
}

// PathExists reports whether to is reachable from from over outgoing edges
// within a few hops.
func (e *Engine) PathExists(from, to string) (bool, error) {
	sn := e.store.Read()
	if _, ok := sn.Get(nodeKey(from)); !ok {
		return false, notFoundf("node %q", from)
	}
	if from == to {
		return true, nil
	}

	visited := map[string]struct{}{from: {}}
	frontier := []string{from}
	for depth := 0; depth < maxPathDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			found := false
			sn.AscendPrefix(adjOutPrefix(id), func(key string, _ []byte) bool {
				parts, ok := splitComponents(key, prefixAdjOut)
				if !ok || len(parts) != 2 {
					return true
				}
				neighbor := parts[1]
				if neighbor == to {
					found = true
					return false
				}
				if _, seen := visited[neighbor]; !seen {
					visited[neighbor] = struct{}{}
					next = append(next, neighbor)
				}
				return true
			})
			if found {
				return true, nil
			}
		}
		frontier = next
	}
	return false, nil
}

// RecommendOptions parameterizes a recommendation query. Nil pointer fields
// mean "not supplied".
type RecommendOptions struct {
	Start    string
	NodeType string

	// NumKey names the numeric data field to range-filter and rank by.
	NumKey string
	Min    *float64
	Max    *float64

	// RadiusKm enables geospatial filtering around the reference point,
	// which is Lat/Lon when supplied and Start's location otherwise.
	RadiusKm *float64
	Lat      *float64
	Lon      *float64

	ExcludeEdgeTypes []string
	Limit            int
	Hydrate          bool
}

// scored is one surviving candidate before ranking.
type scored struct {
	id     string
	num    float64
	distKm float64
	data   map[string]string
}

// Recommendations filters and ranks candidate nodes for a start node.
//
// The candidate set is every node of NodeType except the start itself,
// minus nodes linked to the start by an excluded edge type in either
// direction. Candidates missing a requested numeric field or a parsable
// location are dropped silently. Ranking is total and deterministic:
// numeric value descending when NumKey is set, else distance ascending
// when RadiusKm is set, else id ascending; ties always break by id.
func (e *Engine) Recommendations(opts RecommendOptions) ([]Recommendation, error) {
	if opts.Limit <= 0 {
		return nil, invalidf("limit must be positive")
	}
	if opts.NodeType == "" {
		return nil, invalidf("node type must be non-empty")
	}
	sn := e.store.Read()

	startRaw, ok := sn.Get(nodeKey(opts.Start))
	if !ok {
		return nil, notFoundf("node %q", opts.Start)
	}

	var ref geo.Point
	if opts.RadiusKm != nil {
		p, err := referencePoint(decodeData(startRaw), opts.Lat, opts.Lon)
		if err != nil {
			return nil, err
		}
		ref = p
	}

	excluded := excludedNeighbors(sn, opts.Start, opts.ExcludeEdgeTypes)
	excluded[opts.Start] = struct{}{}

	var candidates []string
	if opts.RadiusKm != nil {
		candidates = geoCandidates(sn, opts.NodeType, ref, *opts.RadiusKm)
	} else {
		candidates = typeCandidates(sn, opts.NodeType)
	}

	var kept []scored
	for _, id := range candidates {
		if _, skip := excluded[id]; skip {
			continue
		}
		raw, ok := sn.Get(nodeKey(id))
		if !ok {
			continue
		}
		data := decodeData(raw)
		entry := scored{id: id, data: data}

		if opts.NumKey != "" {
			v, err := strconv.ParseFloat(data[opts.NumKey], 64)
			if err != nil {
				continue
			}
			if opts.Min != nil && v < *opts.Min {
				continue
			}
			if opts.Max != nil && v > *opts.Max {
				continue
			}
			entry.num = v
		}
		if opts.RadiusKm != nil {
			p, err := geo.ParsePoint(data[FieldLocation])
			if err != nil {
				continue
			}
			d := geo.Haversine(ref.Lat, ref.Lon, p.Lat, p.Lon)
			if d > *opts.RadiusKm {
				continue
			}
			entry.distKm = d
		}
		kept = append(kept, entry)
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		switch {
		case opts.NumKey != "" && a.num != b.num:
			return a.num > b.num
		case opts.NumKey == "" && opts.RadiusKm != nil && a.distKm != b.distKm:
			return a.distKm < b.distKm
		}
		return a.id < b.id
	})
	if len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}

	out := make([]Recommendation, 0, len(kept))
	for _, c := range kept {
		rec := Recommendation{ID: c.id}
		switch {
		case opts.NumKey != "":
			rec.Score = c.num
		case opts.RadiusKm != nil:
			rec.Score = c.distKm
		}
		if opts.Hydrate {
			rec.Data = c.data
		}
		out = append(out, rec)
	}
	return out, nil
}

// NearbyOptions parameterizes a proximity query. Either GeoHashPrefix or
// Lat, Lon and RadiusKm must be supplied.
type NearbyOptions struct {
	NodeType      string
	GeoHashPrefix string

	Lat      *float64
	Lon      *float64
	RadiusKm *float64

	// Start, when set, applies the edge-type exclusions relative to this
	// node and removes it from the results.
	Start            string
	ExcludeEdgeTypes []string

	// Limit truncates the result; 0 means unlimited.
	Limit   int
	Hydrate bool
}

// Nearby returns nodes of a type inside a geohash cell or an exact radius.
// Radius results are ordered by ascending distance, prefix results by
// ascending id.
func (e *Engine) Nearby(opts NearbyOptions) ([]Node, error) {
	if opts.NodeType == "" {
		return nil, invalidf("node type must be non-empty")
	}
	byRadius := opts.Lat != nil && opts.Lon != nil && opts.RadiusKm != nil
	if opts.GeoHashPrefix == "" && !byRadius {
		return nil, invalidf("either geo_hash prefix or lat, lon and radius_km are required")
	}
	sn := e.store.Read()

	excluded := make(map[string]struct{})
	if opts.Start != "" {
		excluded = excludedNeighbors(sn, opts.Start, opts.ExcludeEdgeTypes)
		excluded[opts.Start] = struct{}{}
	}

	var ref geo.Point
	var candidates []string
	if opts.GeoHashPrefix != "" {
		sn.AscendPrefix(geoScanPrefix(opts.NodeType, opts.GeoHashPrefix), func(key string, _ []byte) bool {
			if id, ok := geoRowID(key); ok {
				candidates = append(candidates, id)
			}
			return true
		})
	} else {
		ref = geo.Point{Lat: *opts.Lat, Lon: *opts.Lon}
		candidates = geoCandidates(sn, opts.NodeType, ref, *opts.RadiusKm)
	}

	var kept []scored
	for _, id := range candidates {
		if _, skip := excluded[id]; skip {
			continue
		}
		raw, ok := sn.Get(nodeKey(id))
		if !ok {
			continue
		}
		data := decodeData(raw)
		entry := scored{id: id, data: data}
		if byRadius {
			p, err := geo.ParsePoint(data[FieldLocation])
			if err != nil {
				continue
			}
			d := geo.Haversine(ref.Lat, ref.Lon, p.Lat, p.Lon)
			if d > *opts.RadiusKm {
				continue
			}
			entry.distKm = d
		}
		kept = append(kept, entry)
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if byRadius && a.distKm != b.distKm {
			return a.distKm < b.distKm
		}
		return a.id < b.id
	})
	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}

	out := make([]Node, 0, len(kept))
	for _, c := range kept {
		n := Node{ID: c.id}
		if opts.Hydrate {
			n.Data = c.data
		}
		out = append(out, n)
	}
	return out, nil
}

// referencePoint resolves the center of a radius query: an explicit lat/lon
// override when supplied, the start node's location otherwise.
func referencePoint(startData map[string]string, lat, lon *float64) (geo.Point, error) {
	if lat != nil && lon != nil {
		return geo.Point{Lat: *lat, Lon: *lon}, nil
	}
	p, err := geo.ParsePoint(startData[FieldLocation])
	if err != nil {
		return geo.Point{}, invalidf("radius query needs lat/lon or a start node with a location")
	}
	return p, nil
}

// typeCandidates enumerates all node ids of a type, ascending.
func typeCandidates(sn *core.Snapshot, typ string) []string {
	var ids []string
	sn.AscendPrefix(nodeTypePrefix(typ), func(key string, _ []byte) bool {
		parts, ok := splitComponents(key, prefixNodeType)
		if ok && len(parts) == 2 {
			ids = append(ids, parts[1])
		}
		return true
	})
	return ids
}

// geoCandidates narrows a radius query to the geohash cell covering the
// radius plus its eight neighbors. Over-inclusive by design of the cell
// grid; the caller prunes by exact distance.
func geoCandidates(sn *core.Snapshot, typ string, ref geo.Point, radiusKm float64) []string {
	precision := geo.PrecisionForRadius(radiusKm)
	center := geo.Encode(ref.Lat, ref.Lon, precision)

	cells := append([]string{center}, geo.Neighbors(center)...)
	seen := make(map[string]struct{})
	var ids []string
	for _, cell := range cells {
		sn.AscendPrefix(geoScanPrefix(typ, cell), func(key string, _ []byte) bool {
			id, ok := geoRowID(key)
			if !ok {
				return true
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
			return true
		})
	}
	return ids
}

// geoRowID extracts the node id from a geo index key.
func geoRowID(key string) (string, bool) {
	parts, ok := splitComponents(key, prefixGeo)
	if !ok || len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

// excludedNeighbors collects every node linked to start by one of the given
// edge types, in either direction. The adjacency rows store the edge type
// as value, so no edge row loads are needed.
func excludedNeighbors(sn *core.Snapshot, start string, edgeTypes []string) map[string]struct{} {
	out := make(map[string]struct{})
	if len(edgeTypes) == 0 {
		return out
	}
	typeSet := make(map[string]struct{}, len(edgeTypes))
	for _, t := range edgeTypes {
		typeSet[t] = struct{}{}
	}

	collect := func(prefix, tablePrefix string) {
		sn.AscendPrefix(prefix, func(key string, value []byte) bool {
			if _, match := typeSet[string(value)]; !match {
				return true
			}
			parts, ok := splitComponents(key, tablePrefix)
			if ok && len(parts) == 2 {
				out[parts[1]] = struct{}{}
			}
			return true
		})
	}
	collect(adjOutPrefix(start), prefixAdjOut)
	collect(adjInPrefix(start), prefixAdjIn)
	return out
}

// outgoingEdges loads the full outgoing edge list of a node for hydration.
func outgoingEdges(sn *core.Snapshot, id string) []Edge {
	var edges []Edge
	sn.AscendPrefix(adjOutPrefix(id), func(key string, _ []byte) bool {
		parts, ok := splitComponents(key, prefixAdjOut)
		if !ok || len(parts) != 2 {
			return true
		}
		to := parts[1]
		edge := Edge{From: id, To: to}
		if raw, ok := sn.Get(edgeKey(id, to)); ok {
			edge.Data = decodeData(raw)
		}
		edges = append(edges, edge)
		return true
	})
	return edges
}
