package mailbox

import "github.com/hearthcore/hearth/pkg/capability"

// Envelope is an ordinary message: an opaque payload plus zero or more
// capabilities being transferred to the receiver. Payloads are left as
// []byte — encoding is the guest/peerlink layer's concern, not the
// mailbox's.
type Envelope struct {
	From  capability.ProcessID
	Payload []byte
	Caps  []capability.Capability
}

// SignalKind discriminates the two signal shapes a mailbox can carry
// alongside ordinary envelopes.
type SignalKind uint8

const (
	// SignalDown fires once when a monitored process exits.
	SignalDown SignalKind = iota
	// SignalUnlink marks a linked peer dropping the link without
	// terminating. Neither internal/process nor internal/peerlink
	// enqueues it; peer-link teardown reaches watchers as SignalDown.
	SignalUnlink
)

// Signal is a control message interleaved with ordinary envelopes in
// exact arrival order. Unlike an Envelope, a Signal is never subject to
// the mailbox's drop backpressure policy — monitor and link contracts
// promise exactly-once, unconditional delivery.
type Signal struct {
	Kind   SignalKind
	Target capability.ProcessID // who the signal is about
	Reason error                // exit reason for Down, nil for Unlink
}

// Message is whatever sits in a mailbox's queue: either an Envelope or a
// Signal, never both. Consumers check which of the two fields is non-nil.
type Message struct {
	Envelope *Envelope
	Signal   *Signal
}

func fromEnvelope(e Envelope) Message { return Message{Envelope: &e} }
func fromSignal(s Signal) Message     { return Message{Signal: &s} }
