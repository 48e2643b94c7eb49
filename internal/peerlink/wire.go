// Package peerlink implements transparent remoting: a framed duplex
// wire protocol between two hearth runtimes, backed by per-direction
// export/import handle tables. A Link acts on Hello, Send, Close,
// LumpRequest and LumpReply frames. The Monitor, Demonitor, Link, Unlink
// and Down op kinds are defined on the wire, but nothing in this package
// sends them and an inbound frame of those kinds is logged as unhandled.
package peerlink

// OpKind enumerates the wire protocol's fixed operation set (spec.md
// §6). Kept as a small closed string enum rather than a generic
// interface{} payload — there are exactly ten ops and every one of
// them has a fixed, known shape.
type OpKind string

const (
	OpHello       OpKind = "hello"
	OpSend        OpKind = "send"
	OpClose       OpKind = "close"
	OpMonitor     OpKind = "monitor"
	OpDemonitor   OpKind = "demonitor"
	OpLink        OpKind = "link"
	OpUnlink      OpKind = "unlink"
	OpDown        OpKind = "down"
	OpLumpRequest OpKind = "lump_request"
	OpLumpReply   OpKind = "lump_reply"
)

// Frame is the single wire shape every op is marshaled through. Fields
// not meaningful to a given Op are simply omitted. Grounded on the
// export/import table design of zombiezen.com/go/capnproto2/rpc's Conn
// (questions/exports/imports/answers), simplified down to hearth's
// fixed op set and JSON-over-length-prefix instead of Cap'n Proto
// segments (no capnpc-go codegen step is available in this
// environment — see DESIGN.md).
type Frame struct {
	Op     OpKind `json:"op"`
	Handle uint64 `json:"handle,omitempty"`

	// Hello
	PeerID string `json:"peer_id,omitempty"`

	// Send
	Payload []byte   `json:"payload,omitempty"`
	Caps    []uint64 `json:"caps,omitempty"`

	// Close / Down
	Reason string `json:"reason,omitempty"`

	// LumpRequest / LumpReply
	Digest string `json:"digest,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Found  bool   `json:"found,omitempty"`
}
