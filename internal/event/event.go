// Package event defines the unit of data that flows through the ingestion
// pipeline, from the upstream parsers through the bounded queue to the
// database writer.
package event

// Kind classifies an Event by the on-chain program that emitted it.
type Kind int

const (
	// KindUnknown marks an event whose program id didn't match any
	// configured program. It is still queued (at-least-once semantics don't
	// discriminate at enqueue time) but the writer drops it silently.
	KindUnknown Kind = iota
	KindPumpfun
	KindRaydium
)

func (k Kind) String() string {
	switch k {
	case KindPumpfun:
		return "PUMPFUN"
	case KindRaydium:
		return "RAYDIUM"
	default:
		return "UNKNOWN"
	}
}

// MaxDataLen is the maximum decoded payload size accepted from a single
// "Program data:" log line. Anything larger is a DecodeFailure.
const MaxDataLen = 4096

const (
	maxProgramIDLen = 63
	maxSignatureLen = 127
)

// Event is value-typed: once pushed onto the queue no producer keeps a
// reference to it, so copies are cheap and safe to hand across goroutines.
type Event struct {
	Kind      Kind
	ProgramID string
	Signature string
	Slot      uint64
	Data      []byte
	DataLen   int
}

// Complete reports whether the event carries a decoded payload and a
// recognized kind, per the data model's completeness invariant.
func (e Event) Complete() bool {
	return e.DataLen > 0 && e.Kind != KindUnknown
}

// New builds an Event, truncating ProgramID/Signature to the wire limits
// rather than rejecting them outright — the upstream node is trusted to
// emit well-formed identifiers, but a corrupt or adversarial response
// should not let an oversized string blow past storage column limits.
func New(kind Kind, programID, signature string, slot uint64, data []byte) Event {
	if len(programID) > maxProgramIDLen {
		programID = programID[:maxProgramIDLen]
	}
	if len(signature) > maxSignatureLen {
		signature = signature[:maxSignatureLen]
	}
	return Event{
		Kind:      kind,
		ProgramID: programID,
		Signature: signature,
		Slot:      slot,
		Data:      data,
		DataLen:   len(data),
	}
}
