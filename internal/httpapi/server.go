// Package httpapi exposes the telephony webhooks, the operator endpoints
// and the live call-event feed.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/elena-voice/elena/internal/appointment"
	"github.com/elena-voice/elena/internal/config"
	"github.com/elena-voice/elena/internal/dispatch"
	"github.com/elena-voice/elena/internal/observability"
	"github.com/elena-voice/elena/internal/telephony"
)

// Dispatcher is the conversation engine behind the webhooks. It is an
// interface so handler tests can run against a scripted fake.
type Dispatcher interface {
	StartCall(ctx context.Context, callID, callerPhone string) dispatch.Reply
	HandleUtterance(ctx context.Context, callID, callerPhone, text string) dispatch.Reply
	EndCall(callID string)
	Bus() *dispatch.EventBus
}

type Server struct {
	cfg          config.Config
	dispatcher   Dispatcher
	appointments *appointment.Service
	renderer     *telephony.Renderer
	metrics      *observability.Metrics
	storeMode    string
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, d Dispatcher, appointments *appointment.Service, renderer *telephony.Renderer, metrics *observability.Metrics, storeMode string) *Server {
	return &Server{
		cfg:          cfg,
		dispatcher:   d,
		appointments: appointments,
		renderer:     renderer,
		metrics:      metrics,
		storeMode:    storeMode,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so an arbitrary website cannot watch live calls
				// if the monitor is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/twilio/answer", s.handleAnswer)
	r.Post("/twilio/gather", s.handleGather)
	r.Post("/twilio/status", s.handleStatus)

	r.Get("/v1/appointments", s.handleListAppointments)
	r.Get("/v1/calls/ws", s.handleCallsWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": s.storeMode,
	})
}

// handleAnswer is the first webhook of a call. The greeting is produced by
// a full dispatch pass; the caller always hears something, even on failure.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	callID, callerPhone := callParams(r)
	if callID == "" {
		log.Printf("answer webhook without CallSid from %s", r.RemoteAddr)
		s.respondHangup(w, apologyLine)
		return
	}

	reply := s.dispatcher.StartCall(r.Context(), callID, callerPhone)
	s.respondReply(w, reply)
}

// handleGather receives one speech transcription and runs a dispatch pass.
func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	callID, callerPhone := callParams(r)
	if callID == "" {
		log.Printf("gather webhook without CallSid from %s", r.RemoteAddr)
		s.respondHangup(w, apologyLine)
		return
	}

	speech := strings.TrimSpace(r.PostFormValue("SpeechResult"))
	if speech == "" {
		// Nothing was transcribed. Re-prompt instead of feeding the model
		// an empty utterance.
		s.respondGather(w, silenceLine)
		return
	}

	reply := s.dispatcher.HandleUtterance(r.Context(), callID, callerPhone, speech)
	s.respondReply(w, reply)
}

// handleStatus is the call status callback. Terminal statuses tear the
// session down; everything else is acknowledged and ignored.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	status := strings.TrimSpace(r.PostFormValue("CallStatus"))
	if callID != "" && terminalCallStatus(status) {
		s.dispatcher.EndCall(callID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func terminalCallStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

// handleListAppointments serves the operator view. Filters: ?day=YYYY-MM-DD
// (in the business timezone) or ?phone=E.164; day wins when both are set.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	if day := r.URL.Query().Get("day"); day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", day, s.cfg.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
			return
		}
		list, err := s.appointments.ListByDay(r.Context(), parsed)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, listResponse{Appointments: list})
		return
	}

	if phone := r.URL.Query().Get("phone"); phone != "" {
		list, err := s.appointments.SearchByPhone(r.Context(), phone)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, listResponse{Appointments: list})
		return
	}

	respondError(w, http.StatusBadRequest, "missing_filter", "query parameter day or phone is required")
}

type listResponse struct {
	Appointments []appointment.Appointment `json:"appointments"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// callParams pulls the call identity out of the webhook form. The caller
// phone comes from the provider-verified From field, never from the body of
// the conversation.
func callParams(r *http.Request) (callID, callerPhone string) {
	return strings.TrimSpace(r.PostFormValue("CallSid")), strings.TrimSpace(r.PostFormValue("From"))
}
