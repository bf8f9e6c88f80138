package oracle

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/elena-voice/elena/internal/session"
)

func decodeMockReply(t *testing.T, raw string) (action, message string) {
	t.Helper()
	var parsed struct {
		Action string `json:"action"`
		Data   struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("mock reply is not JSON: %v (%q)", err, raw)
	}
	return parsed.Action, parsed.Data.Message
}

func TestMockGreetsOnEmptyConversation(t *testing.T) {
	raw, err := NewMock().Complete(context.Background(), []session.Message{
		{Role: session.RoleUser, Text: session.ContextPrefix + "CALL_STARTED caller=+54911"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	action, message := decodeMockReply(t, raw)
	if action != "TALK" {
		t.Fatalf("action = %q", action)
	}
	if !strings.Contains(message, "Elena") {
		t.Fatalf("greeting = %q", message)
	}
}

func TestMockEchoesAndHangsUp(t *testing.T) {
	mock := NewMock()

	raw, _ := mock.Complete(context.Background(), []session.Message{
		{Role: session.RoleUser, Text: "quiero un turno"},
	})
	action, message := decodeMockReply(t, raw)
	if action != "TALK" || !strings.Contains(message, "quiero un turno") {
		t.Fatalf("echo reply = %q %q", action, message)
	}

	raw, _ = mock.Complete(context.Background(), []session.Message{
		{Role: session.RoleUser, Text: "chau"},
	})
	action, _ = decodeMockReply(t, raw)
	if action != "END_CALL" {
		t.Fatalf("farewell action = %q", action)
	}
}
