// Package oracle talks to the language model that drives the call. The model
// is a black box contractually required to answer with a single JSON action;
// everything conversational is delegated to it.
package oracle

import (
	"context"
	"errors"

	"github.com/elena-voice/elena/internal/session"
)

// ErrContract marks oracle output that violates the structured-action
// contract (malformed JSON, unknown action, missing fields). It is an
// internal error, never spoken to the caller verbatim.
var ErrContract = errors.New("oracle contract violation")

// Client produces one raw model reply from the accumulated call history.
// The reply text is expected to be a JSON action object; decoding is the
// dispatcher's concern so that the raw text can be appended to the session
// history before any validation happens.
type Client interface {
	Complete(ctx context.Context, history []session.Message) (string, error)
}
