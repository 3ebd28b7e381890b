package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"velo.run/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	subscribeSchema := compile("subscribe.schema.json")
	bootstrapSchema := compile("bootstrap.schema.json")
	snapshotSchema := compile("snapshot.schema.json")

	var sub any
	_ = json.Unmarshal([]byte(`{
	  "type":"SUBSCRIBE",
	  "protocol_version":"1.0",
	  "ignore_void":true
	}`), &sub)
	validate(subscribeSchema, sub)

	var boot any
	_ = json.Unmarshal([]byte(`{
	  "protocol_version":"1.0",
	  "program":"examples/cat.velo",
	  "source_digest":"1f8ac10f23c5b5bc1167bda84b833e5c057a77d2b240ec653e9c8b6b3d4f8e1a",
	  "width":4,
	  "height":2,
	  "mode":"trace"
	}`), &boot)
	validate(bootstrapSchema, boot)

	// A SNAPSHOT message and a bare trace log record share one schema; the
	// type tag is optional.
	var snap any
	_ = json.Unmarshal([]byte(`{
	  "type":"SNAPSHOT",
	  "cycle":3,
	  "pos":[0,3],
	  "dir":"DOWN",
	  "velocity":1,
	  "entropy":104,
	  "rune":"THRUST_DOWN",
	  "lattice_rle":"AAFoAQ==",
	  "input":104,
	  "digest":"9c56cc51b374c3ba189210d5b6d4bf57790d351c96c47c02190ecf1e430635ab"
	}`), &snap)
	validate(snapshotSchema, snap)

	var entry any
	b, err := json.Marshal(protocol.TraceEntry{
		Cycle:      1,
		Pos:        [2]int{0, 1},
		Dir:        "RIGHT",
		Velocity:   1,
		Entropy:    0,
		Rune:       "OUTPUT",
		LatticeRLE: "AAI=",
		Digest:     "9c56cc51b374c3ba189210d5b6d4bf57790d351c96c47c02190ecf1e430635ab",
	})
	if err != nil {
		t.Fatalf("marshal trace entry: %v", err)
	}
	_ = json.Unmarshal(b, &entry)
	validate(snapshotSchema, entry)
}
