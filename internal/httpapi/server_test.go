package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/elena-voice/elena/internal/appointment"
	"github.com/elena-voice/elena/internal/config"
	"github.com/elena-voice/elena/internal/dispatch"
	"github.com/elena-voice/elena/internal/telephony"
)

type fakeDispatcher struct {
	reply      dispatch.Reply
	started    []string
	utterances []string
	ended      []string
	bus        *dispatch.EventBus
}

func newFakeDispatcher(reply dispatch.Reply) *fakeDispatcher {
	return &fakeDispatcher{reply: reply, bus: dispatch.NewEventBus()}
}

func (f *fakeDispatcher) StartCall(_ context.Context, callID, _ string) dispatch.Reply {
	f.started = append(f.started, callID)
	return f.reply
}

func (f *fakeDispatcher) HandleUtterance(_ context.Context, callID, _ string, text string) dispatch.Reply {
	f.utterances = append(f.utterances, callID+":"+text)
	return f.reply
}

func (f *fakeDispatcher) EndCall(callID string) {
	f.ended = append(f.ended, callID)
}

func (f *fakeDispatcher) Bus() *dispatch.EventBus { return f.bus }

func newTestServer(t *testing.T, d Dispatcher) (*Server, *appointment.Service) {
	t.Helper()
	cfg := config.Config{
		Timezone:       "America/Argentina/Buenos_Aires",
		TwilioVoice:    "Polly.Mia",
		TwilioLanguage: "es-MX",
		GatherEndpoint: "/twilio/gather",
	}
	svc := appointment.NewService(appointment.NewMemoryStore(), nil, cfg.Location(), time.Second, nil)
	renderer := telephony.NewRenderer(telephony.Config{
		Voice:          cfg.TwilioVoice,
		Language:       cfg.TwilioLanguage,
		GatherEndpoint: cfg.GatherEndpoint,
	})
	return New(cfg, d, svc, renderer, nil, "in-memory"), svc
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnswerWebhookReturnsGatherTwiML(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{Text: "Hola, soy Elena."})
	srv, _ := newTestServer(t, d)

	rec := postForm(t, srv.Router(), "/twilio/answer", url.Values{
		"CallSid": {"CA123"},
		"From":    {"+5491155550000"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("content type = %q, want text/xml", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("body missing Gather: %s", body)
	}
	if !strings.Contains(body, "Hola, soy Elena.") {
		t.Fatalf("body missing greeting: %s", body)
	}
	if len(d.started) != 1 || d.started[0] != "CA123" {
		t.Fatalf("started calls = %v", d.started)
	}
}

func TestAnswerWebhookWithoutCallSidHangsUp(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{Text: "hola"})
	srv, _ := newTestServer(t, d)

	rec := postForm(t, srv.Router(), "/twilio/answer", url.Values{"From": {"+54911"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("body missing Hangup: %s", body)
	}
	if len(d.started) != 0 {
		t.Fatalf("dispatcher should not be invoked without CallSid")
	}
}

func TestGatherWebhookRunsDispatchPass(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{Text: "Claro, ¿para qué día?"})
	srv, _ := newTestServer(t, d)

	rec := postForm(t, srv.Router(), "/twilio/gather", url.Values{
		"CallSid":      {"CA123"},
		"From":         {"+5491155550000"},
		"SpeechResult": {"quiero un turno"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Claro, ¿para qué día?") {
		t.Fatalf("body missing reply: %s", rec.Body.String())
	}
	if len(d.utterances) != 1 || d.utterances[0] != "CA123:quiero un turno" {
		t.Fatalf("utterances = %v", d.utterances)
	}
}

func TestGatherWebhookEndCallRendersHangup(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{Text: "Hasta luego.", EndCall: true})
	srv, _ := newTestServer(t, d)

	rec := postForm(t, srv.Router(), "/twilio/gather", url.Values{
		"CallSid":      {"CA123"},
		"SpeechResult": {"chau"},
	})

	body := rec.Body.String()
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("body missing Hangup: %s", body)
	}
	if strings.Contains(body, "<Gather") {
		t.Fatalf("terminal reply must not keep listening: %s", body)
	}
}

func TestGatherWebhookEmptySpeechRepromptsWithoutDispatch(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{Text: "should not appear"})
	srv, _ := newTestServer(t, d)

	rec := postForm(t, srv.Router(), "/twilio/gather", url.Values{
		"CallSid":      {"CA123"},
		"SpeechResult": {"   "},
	})

	body := rec.Body.String()
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("body missing Gather: %s", body)
	}
	if strings.Contains(body, "should not appear") {
		t.Fatalf("dispatcher reply leaked into re-prompt: %s", body)
	}
	if len(d.utterances) != 0 {
		t.Fatalf("dispatcher should not run on empty speech")
	}
}

func TestStatusWebhookTearsDownTerminalCalls(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{})
	srv, _ := newTestServer(t, d)
	router := srv.Router()

	rec := postForm(t, router, "/twilio/status", url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"completed"},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(d.ended) != 1 || d.ended[0] != "CA123" {
		t.Fatalf("ended = %v", d.ended)
	}

	postForm(t, router, "/twilio/status", url.Values{
		"CallSid":    {"CA456"},
		"CallStatus": {"in-progress"},
	})
	if len(d.ended) != 1 {
		t.Fatalf("non-terminal status must not end the call, ended = %v", d.ended)
	}
}

func TestListAppointmentsByDay(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{})
	srv, svc := newTestServer(t, d)

	loc, _ := time.LoadLocation("America/Argentina/Buenos_Aires")
	_, err := svc.Create(context.Background(), appointment.CreateParams{
		ClientName:  "Marta",
		ClientPhone: "+54911",
		StartTime:   time.Date(2026, 3, 10, 14, 0, 0, 0, loc),
		EndTime:     time.Date(2026, 3, 10, 15, 0, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments?day=2026-03-10", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Marta") {
		t.Fatalf("body missing appointment: %s", rec.Body.String())
	}
}

func TestListAppointmentsRequiresFilter(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{})
	srv, _ := newTestServer(t, d)

	req := httptest.NewRequest(http.MethodGet, "/v1/appointments", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthReportsStoreMode(t *testing.T) {
	d := newFakeDispatcher(dispatch.Reply{})
	srv, _ := newTestServer(t, d)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "in-memory") {
		t.Fatalf("body missing store mode: %s", rec.Body.String())
	}
}
