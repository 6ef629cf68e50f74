package engine

import (
	"github.com/elodb/elograph/pkg/geo"
)

// deriveGeo refreshes the derived geohash field from the location field.
// An unparsable location clears the geohash instead of erroring, so the
// node simply drops out of radius queries.
func deriveGeo(data map[string]string) {
	loc, ok := data[FieldLocation]
	if !ok {
		return
	}
	p, err := geo.ParsePoint(loc)
	if err != nil {
		delete(data, FieldGeoHash)
		return
	}
	data[FieldGeoHash] = p.Geohash()
}

// CreateNode writes a new node. It fails with ErrConflict if the id is
// already taken and with a SchemaError if data carries unrecognized fields.
func (e *Engine) CreateNode(id string, data map[string]string) error {
	if id == "" {
		return invalidf("node id must be non-empty")
	}

	tx := e.store.Write()
	defer tx.Discard()

	if err := validateFields(tx, SchemaKindNode, data); err != nil {
		return err
	}
	if _, exists := tx.Get(nodeKey(id)); exists {
		return conflictf("node %q already exists", id)
	}

	row := copyData(data)
	deriveGeo(row)

	tx.Set(nodeKey(id), encodeData(row))
	indexNode(tx, id, nil, row)
	return e.commit(tx)
}

// SetNodeField sets a single data field on an existing node.
func (e *Engine) SetNodeField(id, field, value string) error {
	return e.UpdateNodeFields(id, map[string]string{field: value})
}

// UpdateNodeFields merges data into an existing node's fields, re-deriving
// the type and geospatial indices when the touched fields affect them.
func (e *Engine) UpdateNodeFields(id string, data map[string]string) error {
	tx := e.store.Write()
	defer tx.Discard()

	raw, exists := tx.Get(nodeKey(id))
	if !exists {
		return notFoundf("node %q", id)
	}
	if err := validateFields(tx, SchemaKindNode, data); err != nil {
		return err
	}

	old := decodeData(raw)
	row := copyData(old)
	for k, v := range data {
		row[k] = v
	}
	deriveGeo(row)

	tx.Set(nodeKey(id), encodeData(row))
	indexNode(tx, id, old, row)
	return e.commit(tx)
}

// indexNode replaces the node's type and geo index rows, removing the ones
// derived from old first. old may be nil on create.
func indexNode(tx txnWriter, id string, old, row map[string]string) {
	oldType, oldHash := old[FieldType], old[FieldGeoHash]
	newType, newHash := row[FieldType], row[FieldGeoHash]

	if oldType != "" && oldType != newType {
		tx.Delete(nodeTypeKey(oldType, id))
	}
	if oldType != "" && oldHash != "" && (oldType != newType || oldHash != newHash) {
		tx.Delete(geoKey(oldType, oldHash, id))
	}
	if newType != "" {
		tx.Set(nodeTypeKey(newType, id), nil)
	}
	if newType != "" && newHash != "" {
		tx.Set(geoKey(newType, newHash, id), nil)
	}
}

// txnWriter is the mutation surface the index helpers need.
type txnWriter interface {
	Set(key string, value []byte)
	Delete(key string)
	Get(key string) ([]byte, bool)
}

// CreateEdge writes a new directed edge. Both endpoints must exist and the
// ordered pair must be free. An edge typed "block" also writes its mirror
// in the same transaction.
func (e *Engine) CreateEdge(from, to string, data map[string]string) error {
	if from == "" || to == "" {
		return invalidf("edge endpoints must be non-empty")
	}

	tx := e.store.Write()
	defer tx.Discard()

	if err := validateFields(tx, SchemaKindEdge, data); err != nil {
		return err
	}
	if _, ok := tx.Get(nodeKey(from)); !ok {
		return notFoundf("node %q", from)
	}
	if _, ok := tx.Get(nodeKey(to)); !ok {
		return notFoundf("node %q", to)
	}
	if _, ok := tx.Get(edgeKey(from, to)); ok {
		return conflictf("edge %q -> %q already exists", from, to)
	}

	row := copyData(data)
	writeEdge(tx, from, to, row)
	if row[FieldType] == EdgeTypeBlock {
		writeEdge(tx, to, from, copyData(row))
	}
	return e.commit(tx)
}

// SetEdgeField sets a single data field on an existing edge.
func (e *Engine) SetEdgeField(from, to, field, value string) error {
	return e.UpdateEdgeFields(from, to, map[string]string{field: value})
}

// UpdateEdgeFields merges data into an existing edge's fields. Field edits
// never re-trigger mirroring; only creation, Block and Unblock maintain the
// mirror pair.
func (e *Engine) UpdateEdgeFields(from, to string, data map[string]string) error {
	tx := e.store.Write()
	defer tx.Discard()

	raw, exists := tx.Get(edgeKey(from, to))
	if !exists {
		return notFoundf("edge %q -> %q", from, to)
	}
	if err := validateFields(tx, SchemaKindEdge, data); err != nil {
		return err
	}

	row := decodeData(raw)
	for k, v := range data {
		row[k] = v
	}
	writeEdge(tx, from, to, row)
	return e.commit(tx)
}

// Block ensures a mirrored pair of "block" edges between two nodes,
// overwriting whatever edges occupy either direction. Calling it again on
// an already blocked pair is a no-op success.
func (e *Engine) Block(from, to string) error {
	if from == "" || to == "" {
		return invalidf("edge endpoints must be non-empty")
	}

	tx := e.store.Write()
	defer tx.Discard()

	row := map[string]string{FieldType: EdgeTypeBlock}
	if err := validateFields(tx, SchemaKindEdge, row); err != nil {
		return err
	}
	if _, ok := tx.Get(nodeKey(from)); !ok {
		return notFoundf("node %q", from)
	}
	if _, ok := tx.Get(nodeKey(to)); !ok {
		return notFoundf("node %q", to)
	}

	if edgeHasType(tx, from, to, EdgeTypeBlock) && edgeHasType(tx, to, from, EdgeTypeBlock) {
		return nil
	}

	writeEdge(tx, from, to, row)
	writeEdge(tx, to, from, copyData(row))
	return e.commit(tx)
}

// Unblock removes the mirrored "block" pair between two nodes. Each
// direction is removed only if it is actually a block edge; if neither is,
// Unblock is a no-op success.
func (e *Engine) Unblock(from, to string) error {
	tx := e.store.Write()
	defer tx.Discard()

	removed := false
	for _, pair := range [2][2]string{{from, to}, {to, from}} {
		raw, ok := tx.Get(edgeKey(pair[0], pair[1]))
		if !ok {
			continue
		}
		row := decodeData(raw)
		if row[FieldType] != EdgeTypeBlock {
			continue
		}
		deleteEdge(tx, pair[0], pair[1], row)
		removed = true
	}
	if !removed {
		return nil
	}
	return e.commit(tx)
}

// writeEdge stages the edge row plus its adjacency and type index rows,
// clearing the type index entry of any edge it overwrites. The adjacency
// rows carry the edge type as value so exclusion scans skip a row lookup.
func writeEdge(tx txnWriter, from, to string, row map[string]string) {
	if raw, ok := tx.Get(edgeKey(from, to)); ok {
		old := decodeData(raw)
		if oldType := old[FieldType]; oldType != "" && oldType != row[FieldType] {
			tx.Delete(edgeTypeKey(oldType, from, to))
		}
	}

	typ := row[FieldType]
	tx.Set(edgeKey(from, to), encodeData(row))
	if typ != "" {
		tx.Set(edgeTypeKey(typ, from, to), nil)
	}
	tx.Set(adjOutKey(from, to), []byte(typ))
	tx.Set(adjInKey(to, from), []byte(typ))
}

// deleteEdge stages removal of the edge row and every index row derived
// from it.
func deleteEdge(tx txnWriter, from, to string, row map[string]string) {
	tx.Delete(edgeKey(from, to))
	if typ := row[FieldType]; typ != "" {
		tx.Delete(edgeTypeKey(typ, from, to))
	}
	tx.Delete(adjOutKey(from, to))
	tx.Delete(adjInKey(to, from))
}

func edgeHasType(tx txnWriter, from, to, typ string) bool {
	raw, ok := tx.Get(edgeKey(from, to))
	if !ok {
		return false
	}
	return decodeData(raw)[FieldType] == typ
}
