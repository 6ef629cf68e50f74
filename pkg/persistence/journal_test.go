package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/elodb/elograph/pkg/core"
)

func TestOpsRoundTrip(t *testing.T) {
	ops := []core.Op{
		{Kind: core.OpSet, Key: "node:user\x1f1", Value: []byte(`{"type":"user"}`)},
		{Kind: core.OpDelete, Key: "edge:a\x1fb"},
		{Kind: core.OpSet, Key: "bin", Value: []byte{0x00, 0xA5, 0xFF}},
	}

	decoded, err := DecodeOps(EncodeOps(ops))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(decoded), len(ops))
	}
	for i := range ops {
		if decoded[i].Kind != ops[i].Kind || decoded[i].Key != ops[i].Key {
			t.Errorf("op %d mismatch: %+v vs %+v", i, decoded[i], ops[i])
		}
		if !bytes.Equal(decoded[i].Value, ops[i].Value) {
			t.Errorf("op %d value mismatch", i)
		}
	}
}

func TestTornTailFrameIsDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.aof")

	aof, err := NewAOFWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	good := EncodeOps([]core.Op{{Kind: core.OpSet, Key: "k", Value: []byte("v")}})
	if err := aof.AppendFrame(good); err != nil {
		t.Fatal(err)
	}
	if err := aof.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash mid-write: a second frame with its payload cut off.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		t.Fatal(err)
	}
	var torn bytes.Buffer
	if err := NewFrameWriter(&torn).WriteFrame(good); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(torn.Bytes()[:torn.Len()-3]); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	payload, _, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("first frame should be intact: %v", err)
	}
	if !bytes.Equal(payload, good) {
		t.Error("first frame payload corrupted")
	}

	_, _, err = ReadFrame(r)
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("torn frame error = %v, want ErrIncompleteFrame", err)
	}
}

func TestCorruptPayloadFailsChecksum(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).WriteFrame([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, _, err := ReadFrame(bytes.NewReader(raw))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}

	// A valid stream still terminates cleanly.
	var ok bytes.Buffer
	if err := NewFrameWriter(&ok).WriteFrame([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(ok.Bytes())
	if _, _, err := ReadFrame(r); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadFrame(r); err != io.EOF {
		t.Errorf("end of journal = %v, want io.EOF", err)
	}
}
