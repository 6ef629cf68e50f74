package persistence

import (
	"encoding/binary"
	"fmt"

	"github.com/elodb/elograph/pkg/core"
)

// EncodeOps serializes a transaction's op list into a frame payload.
//
// Layout: uvarint op count, then per op one kind byte, a length-prefixed key
// and (for sets) a length-prefixed value. The encoding is binary-safe.
func EncodeOps(ops []core.Op) []byte {
	var buf []byte
	buf = binary.AppendUvarint(buf, uint64(len(ops)))
	for _, op := range ops {
		buf = append(buf, byte(op.Kind))
		buf = binary.AppendUvarint(buf, uint64(len(op.Key)))
		buf = append(buf, op.Key...)
		if op.Kind == core.OpSet {
			buf = binary.AppendUvarint(buf, uint64(len(op.Value)))
			buf = append(buf, op.Value...)
		}
	}
	return buf
}

// DecodeOps parses a frame payload back into an op list.
func DecodeOps(payload []byte) ([]core.Op, error) {
	count, n := binary.Uvarint(payload)
	if n <= 0 {
		return nil, fmt.Errorf("malformed txn record: missing op count")
	}
	rest := payload[n:]

	ops := make([]core.Op, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(rest) == 0 {
			return nil, fmt.Errorf("malformed txn record: truncated at op %d", i)
		}
		kind := core.OpKind(rest[0])
		rest = rest[1:]

		key, remaining, err := readChunk(rest)
		if err != nil {
			return nil, fmt.Errorf("malformed txn record: op %d key: %w", i, err)
		}
		rest = remaining

		op := core.Op{Kind: kind, Key: string(key)}
		switch kind {
		case core.OpSet:
			value, remaining, err := readChunk(rest)
			if err != nil {
				return nil, fmt.Errorf("malformed txn record: op %d value: %w", i, err)
			}
			rest = remaining
			op.Value = value
		case core.OpDelete:
		default:
			return nil, fmt.Errorf("malformed txn record: unknown op kind %d", kind)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func readChunk(buf []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, nil, fmt.Errorf("missing length")
	}
	buf = buf[n:]
	if uint64(len(buf)) < length {
		return nil, nil, fmt.Errorf("short chunk")
	}
	chunk := make([]byte, length)
	copy(chunk, buf[:length])
	return chunk, buf[length:], nil
}
