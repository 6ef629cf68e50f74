// This file defines the keyspace of the graph store on top of the ordered
// KV tree. Every row and secondary index entry is a key built from
// hex-escaped components joined by an ASCII unit separator, so arbitrary
// ids, types and field values stay binary-safe and prefix scans over the
// ordered tree can enumerate an index without false matches.
package engine

import (
	"strings"
)

// keySep joins encoded key components. The encoder escapes it, so it can
// never occur inside a component.
const keySep = '\x1f'

// Key prefixes, one per logical table.
const (
	prefixNode     = "node:"     // node:<id> -> JSON data
	prefixEdge     = "edge:"     // edge:<from><sep><to> -> JSON data
	prefixNodeType = "idx:node:" // idx:node:<type><sep><id>
	prefixEdgeType = "idx:edge:" // idx:edge:<type><sep><from><sep><to>
	prefixAdjOut   = "adj:out:"  // adj:out:<from><sep><to>
	prefixAdjIn    = "adj:in:"   // adj:in:<to><sep><from>
	prefixGeo      = "geo:"      // geo:<type><sep><geohash><sep><id>
	prefixSchema   = "schema:"   // schema:<kind> -> JSON field list
)

// encodeComponent hex-escapes the separator, the escape character itself
// and all non-ASCII bytes, keeping keys printable and unambiguous.
func encodeComponent(value string) string {
	var sb strings.Builder
	sb.Grow(len(value))
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == keySep || b == '%' || b > 0x7f {
			sb.WriteByte('%')
			sb.WriteByte(nibbleToHex(b >> 4))
			sb.WriteByte(nibbleToHex(b & 0x0f))
		} else {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// decodeComponent reverses encodeComponent. It reports ok=false on a
// malformed escape sequence.
func decodeComponent(value string) (string, bool) {
	decoded := make([]byte, 0, len(value))
	for i := 0; i < len(value); {
		b := value[i]
		if b != '%' {
			decoded = append(decoded, b)
			i++
			continue
		}
		if i+2 >= len(value) {
			return "", false
		}
		high, ok1 := hexToNibble(value[i+1])
		low, ok2 := hexToNibble(value[i+2])
		if !ok1 || !ok2 {
			return "", false
		}
		decoded = append(decoded, high<<4|low)
		i += 3
	}
	return string(decoded), true
}

func nibbleToHex(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'A' + (v - 10)
}

func hexToNibble(v byte) (byte, bool) {
	switch {
	case v >= '0' && v <= '9':
		return v - '0', true
	case v >= 'a' && v <= 'f':
		return v - 'a' + 10, true
	case v >= 'A' && v <= 'F':
		return v - 'A' + 10, true
	}
	return 0, false
}

func joinComponents(prefix string, components ...string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, c := range components {
		if i > 0 {
			sb.WriteByte(keySep)
		}
		sb.WriteString(encodeComponent(c))
	}
	return sb.String()
}

// splitComponents decodes the part of key after prefix into its components.
func splitComponents(key, prefix string) ([]string, bool) {
	tail := strings.TrimPrefix(key, prefix)
	parts := strings.Split(tail, string(keySep))
	out := make([]string, len(parts))
	for i, p := range parts {
		decoded, ok := decodeComponent(p)
		if !ok {
			return nil, false
		}
		out[i] = decoded
	}
	return out, true
}

func nodeKey(id string) string { return joinComponents(prefixNode, id) }

func edgeKey(from, to string) string { return joinComponents(prefixEdge, from, to) }

func nodeTypeKey(typ, id string) string { return joinComponents(prefixNodeType, typ, id) }

func edgeTypeKey(typ, from, to string) string {
	return joinComponents(prefixEdgeType, typ, from, to)
}

func adjOutKey(from, to string) string { return joinComponents(prefixAdjOut, from, to) }

func adjInKey(to, from string) string { return joinComponents(prefixAdjIn, to, from) }

func geoKey(typ, hash, id string) string {
	// The geohash is plain base-32, it needs no escaping; keeping it raw
	// preserves prefix comparability.
	return joinComponents(prefixGeo, typ) + string(keySep) + hash + string(keySep) + encodeComponent(id)
}

func schemaKey(kind string) string { return joinComponents(prefixSchema, kind) }

// Scan prefixes. The trailing separator stops "user" from matching "userx".

func nodeTypePrefix(typ string) string {
	return joinComponents(prefixNodeType, typ) + string(keySep)
}

func edgeTypePrefix(typ string) string {
	return joinComponents(prefixEdgeType, typ) + string(keySep)
}

func adjOutPrefix(from string) string {
	return joinComponents(prefixAdjOut, from) + string(keySep)
}

func adjInPrefix(to string) string {
	return joinComponents(prefixAdjIn, to) + string(keySep)
}

func geoTypePrefix(typ string) string {
	return joinComponents(prefixGeo, typ) + string(keySep)
}

// geoScanPrefix narrows a geo index scan to hashes starting with hashPrefix.
func geoScanPrefix(typ, hashPrefix string) string {
	return geoTypePrefix(typ) + hashPrefix
}
