package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elena-voice/elena/internal/oracle"
)

// Kind enumerates the closed set of actions the oracle may request.
type Kind string

const (
	KindTalk              Kind = "TALK"
	KindEndCall           Kind = "END_CALL"
	KindAppointmentList   Kind = "APPOINTMENT_LIST"
	KindAppointmentCreate Kind = "APPOINTMENT_CREATE"
	KindAppointmentUpdate Kind = "APPOINTMENT_UPDATE"
	KindAppointmentDelete Kind = "APPOINTMENT_DELETE"
	KindAppointmentSearch Kind = "APPOINTMENT_SEARCH"
)

// Kinds lists every known action, in registration order.
func Kinds() []Kind {
	return []Kind{
		KindTalk,
		KindEndCall,
		KindAppointmentList,
		KindAppointmentCreate,
		KindAppointmentUpdate,
		KindAppointmentDelete,
		KindAppointmentSearch,
	}
}

// Action is the tagged decision decoded from one oracle reply.
type Action struct {
	Name Kind            `json:"action"`
	Data json.RawMessage `json:"data"`
}

// DecodeAction parses a raw oracle reply into an Action. Malformed JSON and
// unknown action names are contract violations, not recoverable parse edge
// cases.
func DecodeAction(raw string) (Action, error) {
	var act Action
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &act); err != nil {
		return Action{}, fmt.Errorf("%w: malformed action JSON: %v", oracle.ErrContract, err)
	}
	if act.Name == "" {
		return Action{}, fmt.Errorf("%w: missing action name", oracle.ErrContract)
	}
	if !knownKind(act.Name) {
		return Action{}, fmt.Errorf("%w: unknown action %q", oracle.ErrContract, act.Name)
	}
	if len(act.Data) == 0 {
		act.Data = json.RawMessage(`{}`)
	}
	return act, nil
}

func knownKind(k Kind) bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}
