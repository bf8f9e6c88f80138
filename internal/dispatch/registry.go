package dispatch

import (
	"context"
	"encoding/json"
)

// Call identifies the phone call a handler is acting for. CallerPhone is
// the verified caller ID from the telephony layer, the only trusted source
// for a client phone number.
type Call struct {
	ID          string
	CallerPhone string
}

// Reply is the final caller-facing result of a dispatch pass.
type Reply struct {
	Text string
	// EndCall tells the transport to hang up after speaking instead of
	// listening for further speech.
	EndCall bool
}

// Outcome is what a handler produced: either a terminal Reply (TALK and
// END_CALL) or a context string to inject before asking the oracle again.
type Outcome struct {
	Reply   *Reply
	Context string
}

func terminal(text string, endCall bool) Outcome {
	return Outcome{Reply: &Reply{Text: text, EndCall: endCall}}
}

func contextual(text string) Outcome {
	return Outcome{Context: text}
}

// Handler executes one action kind. Validation failures are returned as
// _ERROR contexts, not Go errors: the oracle turns them into natural
// language for the caller.
type Handler func(ctx context.Context, call Call, data json.RawMessage) Outcome

// Registry maps action kinds to handlers. It is populated once during
// initialization and immutable afterwards, so lookups need no locking.
type Registry struct {
	handlers map[Kind]Handler
}

func newRegistry(handlers map[Kind]Handler) *Registry {
	copied := make(map[Kind]Handler, len(handlers))
	for k, h := range handlers {
		copied[k] = h
	}
	return &Registry{handlers: copied}
}

// Lookup returns the handler for a kind, or nil when none is registered.
func (r *Registry) Lookup(kind Kind) Handler {
	return r.handlers[kind]
}

// Complete reports whether every known action kind has a handler.
func (r *Registry) Complete() bool {
	for _, kind := range Kinds() {
		if r.handlers[kind] == nil {
			return false
		}
	}
	return true
}
