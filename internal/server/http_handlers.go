package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"github.com/elodb/elograph/pkg/engine"
	"github.com/elodb/elograph/pkg/metrics"
)

// defaultRecommendLimit applies when the limit query parameter is absent.
const defaultRecommendLimit = 20

// registerHTTPHandlers sets up the REST API routes.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /schema", s.handleSchemaUpsert)
	mux.HandleFunc("GET /schema/{kind}", s.handleSchemaGet)

	mux.HandleFunc("POST /nodes", s.handleNodeCreate)
	mux.HandleFunc("GET /nodes", s.handleNodeList)
	mux.HandleFunc("GET /nodes/{id}", s.handleNodeGet)
	mux.HandleFunc("PUT /nodes/{id}/data", s.handleNodeSetField)
	mux.HandleFunc("PATCH /nodes/{id}", s.handleNodePatch)

	mux.HandleFunc("POST /edges", s.handleEdgeCreate)
	mux.HandleFunc("PUT /edges", s.handleEdgeSetField)
	mux.HandleFunc("PATCH /edges", s.handleEdgePatch)
	mux.HandleFunc("GET /edges", s.handleEdgeList)

	mux.HandleFunc("POST /blocks", s.handleBlock)
	mux.HandleFunc("DELETE /blocks", s.handleUnblock)

	mux.HandleFunc("GET /path", s.handlePath)
	mux.HandleFunc("GET /recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /nearby", s.handleNearby)

	mux.HandleFunc("POST /system/aof-rewrite", s.handleAOFRewrite)

	// Debug endpoints (pprof)
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
}

// --- Schema ---

func (s *Server) handleSchemaUpsert(w http.ResponseWriter, r *http.Request) {
	var req SchemaUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'kind' and 'fields'")
		return
	}
	if err := s.Engine.UpsertSchema(req.Kind, req.Fields); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSchemaGet(w http.ResponseWriter, r *http.Request) {
	fields, err := s.Engine.Schema(r.PathValue("kind"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"kind": r.PathValue("kind"), "fields": fields})
}

// --- Nodes ---

func (s *Server) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	var req NodeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'id' and optional 'data'")
		return
	}
	if err := s.Engine.CreateNode(req.ID, req.Data); err != nil {
		s.writeEngineError(w, err)
		return
	}
	metrics.TotalNodes.WithLabelValues(req.Data["type"]).Inc()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleNodeGet(w http.ResponseWriter, r *http.Request) {
	hydrate, ok := s.parseHydrate(w, r, true)
	if !ok {
		return
	}
	node, err := s.Engine.GetNode(r.PathValue("id"), hydrate)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, node)
}

func (s *Server) handleNodeList(w http.ResponseWriter, r *http.Request) {
	hydrate, ok := s.parseHydrate(w, r, true)
	if !ok {
		return
	}
	nodes, err := s.Engine.ListNodes(r.URL.Query().Get("type"), hydrate)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, nodes)
}

func (s *Server) handleNodeSetField(w http.ResponseWriter, r *http.Request) {
	var req NodeFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'key' and 'value'")
		return
	}
	if err := s.Engine.SetNodeField(r.PathValue("id"), req.Key, req.Value); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNodePatch(w http.ResponseWriter, r *http.Request) {
	var req NodePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'data'")
		return
	}
	if err := s.Engine.UpdateNodeFields(r.PathValue("id"), req.Data); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Edges ---

func (s *Server) handleEdgeCreate(w http.ResponseWriter, r *http.Request) {
	var req EdgeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'from', 'to' and optional 'data'")
		return
	}
	if err := s.Engine.CreateEdge(req.From, req.To, req.Data); err != nil {
		s.writeEngineError(w, err)
		return
	}
	typ := req.Data["type"]
	metrics.TotalEdges.WithLabelValues(typ).Inc()
	if typ == engine.EdgeTypeBlock {
		// The mirror edge was written in the same transaction.
		metrics.TotalEdges.WithLabelValues(typ).Inc()
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleEdgeSetField(w http.ResponseWriter, r *http.Request) {
	var req EdgeFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'from', 'to', 'key' and 'value'")
		return
	}
	if err := s.Engine.SetEdgeField(req.From, req.To, req.Key, req.Value); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdgePatch(w http.ResponseWriter, r *http.Request) {
	var req EdgePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'from', 'to' and 'data'")
		return
	}
	if err := s.Engine.UpdateEdgeFields(req.From, req.To, req.Data); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdgeList(w http.ResponseWriter, r *http.Request) {
	hydrate, ok := s.parseHydrate(w, r, true)
	if !ok {
		return
	}
	q := r.URL.Query()
	edges, err := s.Engine.ListEdges(q.Get("type"), q.Get("from"), q.Get("to"), hydrate)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, edges)
}

// --- Blocks ---

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'from' and 'to'")
		return
	}
	if err := s.Engine.Block(req.From, req.To); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON, expected an object with 'from' and 'to'")
		return
	}
	if err := s.Engine.Unblock(req.From, req.To); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Queries ---

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "'from' and 'to' query parameters are required")
		return
	}
	exists, err := s.Engine.PathExists(from, to)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, PathResponse{Exists: exists})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hydrate, ok := s.parseHydrate(w, r, true)
	if !ok {
		return
	}

	opts := engine.RecommendOptions{
		Start:            q.Get("start"),
		NodeType:         q.Get("type"),
		NumKey:           q.Get("num_key"),
		ExcludeEdgeTypes: splitCSV(q.Get("exclude_edge_types")),
		Limit:            defaultRecommendLimit,
		Hydrate:          hydrate,
	}

	var err error
	if opts.Min, err = parseFloatParam(q.Get("min")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'min' parameter")
		return
	}
	if opts.Max, err = parseFloatParam(q.Get("max")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'max' parameter")
		return
	}
	if opts.RadiusKm, err = parseFloatParam(q.Get("radius_km")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'radius_km' parameter")
		return
	}
	if opts.Lat, err = parseFloatParam(q.Get("lat")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'lat' parameter")
		return
	}
	if opts.Lon, err = parseFloatParam(q.Get("lon")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'lon' parameter")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeHTTPError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		opts.Limit = limit
	}

	recs, err := s.Engine.Recommendations(opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, recs)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hydrate, ok := s.parseHydrate(w, r, true)
	if !ok {
		return
	}

	opts := engine.NearbyOptions{
		NodeType:         q.Get("type"),
		GeoHashPrefix:    q.Get("geo_hash_prefix"),
		Start:            q.Get("start"),
		ExcludeEdgeTypes: splitCSV(q.Get("exclude_edge_types")),
		Hydrate:          hydrate,
	}

	var err error
	if opts.Lat, err = parseFloatParam(q.Get("lat")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'lat' parameter")
		return
	}
	if opts.Lon, err = parseFloatParam(q.Get("lon")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'lon' parameter")
		return
	}
	if opts.RadiusKm, err = parseFloatParam(q.Get("radius_km")); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'radius_km' parameter")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeHTTPError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		opts.Limit = limit
	}

	nodes, err := s.Engine.Nearby(opts)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, nodes)
}

// --- System ---

func (s *Server) handleAOFRewrite(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RewriteAOF(); err != nil {
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, StatusResponse{Status: "OK", Message: "journal rewrite completed"})
}

// --- Helpers ---

// parseHydrate reads the hydrate query parameter, writing a 400 and
// returning ok=false when it is malformed.
func (s *Server) parseHydrate(w http.ResponseWriter, r *http.Request, def bool) (value, ok bool) {
	raw := r.URL.Query().Get("hydrate")
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid 'hydrate' parameter")
		return false, false
	}
	return parsed, true
}

func parseFloatParam(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeEngineError maps engine errors onto HTTP status codes.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var schemaErr *engine.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		s.writeHTTPError(w, http.StatusUnprocessableEntity, schemaErr.Error())
	case errors.Is(err, engine.ErrNotFound):
		s.writeHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrConflict):
		s.writeHTTPError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidArgument):
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}
