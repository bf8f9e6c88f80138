package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elena-voice/elena/internal/appointment"
)

const apologyText = "Lo siento, tuvimos un error interno. ¿Podrías repetirme?"

// handlerSet binds the action handlers to their collaborators.
type handlerSet struct {
	appointments *appointment.Service
	loc          *time.Location
}

func newHandlerRegistry(appointments *appointment.Service, loc *time.Location) *Registry {
	hs := &handlerSet{appointments: appointments, loc: loc}
	return newRegistry(map[Kind]Handler{
		KindTalk:              hs.handleTalk,
		KindEndCall:           hs.handleEndCall,
		KindAppointmentList:   hs.handleList,
		KindAppointmentCreate: hs.handleCreate,
		KindAppointmentUpdate: hs.handleUpdate,
		KindAppointmentDelete: hs.handleDelete,
		KindAppointmentSearch: hs.handleSearch,
	})
}

type talkData struct {
	Message string `json:"message"`
}

// handleTalk speaks directly from its own data; it is a terminal leaf of a
// dispatch chain, never a side-effecting operation needing confirmation.
func (hs *handlerSet) handleTalk(_ context.Context, call Call, data json.RawMessage) Outcome {
	var d talkData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.Message) == "" {
		log.Printf("(%s) TALK with empty or malformed message", call.ID)
		return terminal(apologyText, false)
	}
	return terminal(d.Message, false)
}

func (hs *handlerSet) handleEndCall(_ context.Context, call Call, data json.RawMessage) Outcome {
	var d talkData
	if err := json.Unmarshal(data, &d); err != nil || strings.TrimSpace(d.Message) == "" {
		log.Printf("(%s) END_CALL with empty or malformed message", call.ID)
		return terminal("Gracias por llamar. Hasta luego.", true)
	}
	return terminal(d.Message, true)
}

type listData struct {
	Day string `json:"day"`
}

func (hs *handlerSet) handleList(ctx context.Context, call Call, data json.RawMessage) Outcome {
	var d listData
	if err := json.Unmarshal(data, &d); err != nil {
		return errorContext(KindAppointmentList, err)
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(d.Day), hs.loc)
	if err != nil {
		return errorContext(KindAppointmentList, fmt.Errorf("day must be YYYY-MM-DD: %w", err))
	}

	list, err := hs.appointments.ListByDay(ctx, day)
	if err != nil {
		return errorContext(KindAppointmentList, err)
	}
	// The empty case gets an explicit phrase so the oracle never has to
	// interpret an ambiguous empty-array serialization.
	if len(list) == 0 {
		return contextual("APPOINTMENT_LIST_OK: No hay turnos agendados para este día.")
	}
	return okContext(KindAppointmentList, list)
}

type createData struct {
	Summary     string `json:"summary"`
	ClientName  string `json:"client_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

func (hs *handlerSet) handleCreate(ctx context.Context, call Call, data json.RawMessage) Outcome {
	var d createData
	if err := json.Unmarshal(data, &d); err != nil {
		return errorContext(KindAppointmentCreate, err)
	}
	if strings.TrimSpace(d.ClientName) == "" {
		return errorContext(KindAppointmentCreate, fmt.Errorf("client_name is required"))
	}
	start, err := hs.parseLocalTime(d.StartTime)
	if err != nil {
		return errorContext(KindAppointmentCreate, fmt.Errorf("start_time: %w", err))
	}
	end, err := hs.parseLocalTime(d.EndTime)
	if err != nil {
		return errorContext(KindAppointmentCreate, fmt.Errorf("end_time: %w", err))
	}

	created, err := hs.appointments.Create(ctx, appointment.CreateParams{
		Summary:    d.Summary,
		ClientName: strings.TrimSpace(d.ClientName),
		// Trust boundary: the phone number always comes from the verified
		// caller ID, never from model-provided data.
		ClientPhone: call.CallerPhone,
		StartTime:   start,
		EndTime:     end,
		Description: d.Description,
	})
	if err != nil {
		return errorContext(KindAppointmentCreate, err)
	}
	return okContext(KindAppointmentCreate, created)
}

type updateData struct {
	ID          string  `json:"id"`
	Summary     *string `json:"summary"`
	ClientName  *string `json:"client_name"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Description *string `json:"description"`
}

func (hs *handlerSet) handleUpdate(ctx context.Context, call Call, data json.RawMessage) Outcome {
	var d updateData
	if err := json.Unmarshal(data, &d); err != nil {
		return errorContext(KindAppointmentUpdate, err)
	}
	if strings.TrimSpace(d.ID) == "" {
		return errorContext(KindAppointmentUpdate, fmt.Errorf("id is required"))
	}

	params := appointment.UpdateParams{
		ID:          strings.TrimSpace(d.ID),
		Summary:     d.Summary,
		ClientName:  d.ClientName,
		Description: d.Description,
	}
	if d.StartTime != nil {
		t, err := hs.parseLocalTime(*d.StartTime)
		if err != nil {
			return errorContext(KindAppointmentUpdate, fmt.Errorf("start_time: %w", err))
		}
		params.StartTime = &t
	}
	if d.EndTime != nil {
		t, err := hs.parseLocalTime(*d.EndTime)
		if err != nil {
			return errorContext(KindAppointmentUpdate, fmt.Errorf("end_time: %w", err))
		}
		params.EndTime = &t
	}

	updated, err := hs.appointments.Update(ctx, params)
	if err != nil {
		return errorContext(KindAppointmentUpdate, err)
	}
	return okContext(KindAppointmentUpdate, updated)
}

type deleteData struct {
	ID string `json:"id"`
}

// handleDelete is idempotent: cancelling a missing or already-cancelled
// appointment succeeds so duplicate caller requests stay harmless.
func (hs *handlerSet) handleDelete(ctx context.Context, call Call, data json.RawMessage) Outcome {
	var d deleteData
	if err := json.Unmarshal(data, &d); err != nil {
		return errorContext(KindAppointmentDelete, err)
	}
	if strings.TrimSpace(d.ID) == "" {
		return errorContext(KindAppointmentDelete, fmt.Errorf("id is required"))
	}

	if err := hs.appointments.Delete(ctx, strings.TrimSpace(d.ID)); err != nil {
		return errorContext(KindAppointmentDelete, err)
	}
	return okContext(KindAppointmentDelete, map[string]string{"id": strings.TrimSpace(d.ID), "status": string(appointment.StatusDeleted)})
}

func (hs *handlerSet) handleSearch(ctx context.Context, call Call, _ json.RawMessage) Outcome {
	list, err := hs.appointments.SearchByPhone(ctx, call.CallerPhone)
	if err != nil {
		return errorContext(KindAppointmentSearch, err)
	}
	if len(list) == 0 {
		return contextual("APPOINTMENT_SEARCH_OK: El cliente no tiene turnos agendados.")
	}
	return okContext(KindAppointmentSearch, list)
}

// parseLocalTime accepts the formats the oracle produces: bare local
// timestamps (interpreted in the configured zone) and full RFC3339.
func (hs *handlerSet) parseLocalTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, hs.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func okContext(kind Kind, payload any) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorContext(kind, err)
	}
	return contextual(fmt.Sprintf("%s_OK %s", kind, body))
}

func errorContext(kind Kind, err error) Outcome {
	return contextual(fmt.Sprintf("%s_ERROR %v", kind, err))
}
