package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/elena-voice/elena/internal/session"
)

// Mock is a deterministic oracle for local runs without a Gemini key.
// It greets, echoes, and hangs up on a farewell.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Complete(_ context.Context, history []session.Message) (string, error) {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == session.RoleUser && !strings.HasPrefix(history[i].Text, session.ContextPrefix) {
			last = history[i].Text
			break
		}
	}

	action := "TALK"
	message := "Hola, soy Elena. ¿En qué puedo ayudarte?"
	switch {
	case last == "":
	case strings.Contains(strings.ToLower(last), "adios"), strings.Contains(strings.ToLower(last), "chau"):
		action = "END_CALL"
		message = "Gracias por llamar, que tengas un buen día."
	default:
		message = "Entendido: " + last
	}

	payload, _ := json.Marshal(map[string]any{
		"action": action,
		"data":   map[string]string{"message": message},
	})
	return string(payload), nil
}
