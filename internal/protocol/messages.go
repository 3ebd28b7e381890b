package protocol

// Version is the instrumentation wire protocol version, shared by the trace
// log format and the observer endpoints.
const Version = "1.0"

// TraceEntry is one instrumentation snapshot on the wire: one JSONL record
// in the trace log, and the payload of an observer SNAPSHOT message. The
// lattice rides as RLE (base64 varint pairs) since it is mostly zeros.
type TraceEntry struct {
	Cycle      uint64 `json:"cycle"`
	Pos        [2]int `json:"pos"` // row, col
	Dir        string `json:"dir"`
	Velocity   uint32 `json:"velocity"`
	Entropy    uint32 `json:"entropy"`
	Rune       string `json:"rune"`
	LatticeRLE string `json:"lattice_rle"`

	// Input byte consumed this cycle, if the impacted rune was Input.
	// Recorded so a replay can feed the run the same bytes.
	Input *int `json:"input,omitempty"`

	// State digest after this cycle, for deterministic replay verification.
	Digest string `json:"digest"`
}

// SUBSCRIBE (client -> server). First message on the observer WS connection;
// may be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Skip snapshots whose impacted rune is Void.
	IgnoreVoid bool `json:"ignore_void,omitempty"`
}

// SNAPSHOT (server -> client). Sent for every snapshot the run produces.
type SnapshotMsg struct {
	Type string `json:"type"`
	TraceEntry
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Program         string `json:"program"`
	SourceDigest    string `json:"source_digest"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Mode            string `json:"mode"`
}
