package appointment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/elena-voice/elena/internal/calendar"
	"github.com/elena-voice/elena/internal/observability"
)

// Service owns appointment lifecycle rules: local-first writes, soft delete,
// merge-only updates and best-effort mirroring. The local store is always
// authoritative; the mirror is a follower.
type Service struct {
	store         Store
	mirror        calendar.Mirror
	loc           *time.Location
	mirrorTimeout time.Duration
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewService builds a Service. mirror may be nil, which disables mirroring
// entirely (a valid configuration). metrics may be nil in tests.
func NewService(store Store, mirror calendar.Mirror, loc *time.Location, mirrorTimeout time.Duration, metrics *observability.Metrics) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if mirrorTimeout <= 0 {
		mirrorTimeout = 10 * time.Second
	}
	return &Service{
		store:         store,
		mirror:        mirror,
		loc:           loc,
		mirrorTimeout: mirrorTimeout,
		metrics:       metrics,
		// Microsecond precision survives a TIMESTAMPTZ round trip, so the
		// updated_at guard in SetSyncState compares equal values.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateParams carries the validated inputs for a new appointment. The
// client phone comes from the verified caller ID, never from model output.
type CreateParams struct {
	Summary     string
	ClientName  string
	ClientPhone string
	StartTime   time.Time
	EndTime     time.Time
	Description string
}

// UpdateParams is merge-only: nil fields keep their previous values.
type UpdateParams struct {
	ID          string
	Summary     *string
	ClientName  *string
	StartTime   *time.Time
	EndTime     *time.Time
	Description *string
}

func (s *Service) Create(ctx context.Context, p CreateParams) (Appointment, error) {
	if p.ClientName == "" {
		return Appointment{}, fmt.Errorf("client_name is required")
	}
	if !p.StartTime.Before(p.EndTime) {
		return Appointment{}, fmt.Errorf("start_time must be before end_time")
	}

	now := s.now()
	a := Appointment{
		ID:          uuid.NewString(),
		Summary:     p.Summary,
		ClientName:  p.ClientName,
		ClientPhone: p.ClientPhone,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Description: p.Description,
		Status:      StatusConfirmed,
		SyncStatus:  SyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Local write first: the appointment stands even if the mirror is down.
	if err := s.store.Upsert(ctx, a); err != nil {
		return Appointment{}, err
	}
	return s.pushToMirror(ctx, a), nil
}

func (s *Service) Update(ctx context.Context, p UpdateParams) (Appointment, error) {
	a, err := s.store.Get(ctx, p.ID)
	if err != nil {
		return Appointment{}, err
	}
	if a.Deleted() {
		return Appointment{}, ErrNotFound
	}

	if p.Summary != nil {
		a.Summary = *p.Summary
	}
	if p.ClientName != nil {
		a.ClientName = *p.ClientName
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if !a.StartTime.Before(a.EndTime) {
		return Appointment{}, fmt.Errorf("start_time must be before end_time")
	}

	a.SyncStatus = SyncPending
	a.UpdatedAt = s.now()
	if err := s.store.Upsert(ctx, a); err != nil {
		return Appointment{}, err
	}
	return s.pushToMirror(ctx, a), nil
}

// Delete soft-deletes by id. Missing and already-deleted records are
// tolerated so duplicate caller requests stay conversational.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if a.Deleted() {
		return nil
	}

	a.Status = StatusDeleted
	a.SyncStatus = SyncPending
	a.UpdatedAt = s.now()
	if err := s.store.Upsert(ctx, a); err != nil {
		return err
	}
	s.pushToMirror(ctx, a)
	return nil
}

// ListByDay returns non-deleted appointments whose start falls within the
// given calendar day in the configured timezone.
func (s *Service) ListByDay(ctx context.Context, day time.Time) ([]Appointment, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)
	return s.store.ListRange(ctx, from, to)
}

func (s *Service) SearchByPhone(ctx context.Context, phone string) ([]Appointment, error) {
	return s.store.ListByPhone(ctx, phone)
}

func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	return s.store.Get(ctx, id)
}

// PendingSync exposes diverged records for the reconciler sweep.
func (s *Service) PendingSync(ctx context.Context, limit int) ([]Appointment, error) {
	return s.store.ListPendingSync(ctx, limit)
}

// Sync retries the mirror write for one record and persists the outcome.
// Used by the background reconciler.
func (s *Service) Sync(ctx context.Context, a Appointment) error {
	synced := s.pushToMirror(ctx, a)
	if synced.SyncStatus != SyncSynced {
		return fmt.Errorf("appointment %s still pending after mirror retry", a.ID)
	}
	return nil
}

// pushToMirror attempts the mirror write matching the record's state and
// persists sync_status=synced on success. Failures are logged and leave the
// record pending; they are never surfaced to the caller.
func (s *Service) pushToMirror(ctx context.Context, a Appointment) Appointment {
	if s.mirror == nil {
		return a
	}

	mctx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	defer cancel()

	var err error
	operation := "update"
	switch {
	case a.Deleted():
		if a.ExternalID == "" {
			// Never reached the mirror; nothing external to delete.
			break
		}
		operation = "delete"
		err = s.mirror.DeleteEvent(mctx, a.ExternalID)
	case a.ExternalID == "":
		operation = "create"
		var eventID string
		eventID, err = s.mirror.CreateEvent(mctx, s.toEvent(a))
		if err == nil {
			a.ExternalID = eventID
		}
	default:
		err = s.mirror.UpdateEvent(mctx, a.ExternalID, s.toEvent(a))
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.MirrorErrors.WithLabelValues(operation).Inc()
		}
		log.Printf("calendar mirror %s failed for appointment %s (left pending): %v", operation, a.ID, err)
		return a
	}

	// Persist only the sync outcome, guarded on updated_at: a caller write
	// that landed while the mirror push was in flight must win, with the
	// rewritten record left pending for the next push.
	synced, persistErr := s.store.SetSyncState(ctx, a.ID, a.ExternalID, a.UpdatedAt)
	if persistErr != nil {
		log.Printf("persist sync state for appointment %s failed: %v", a.ID, persistErr)
		return a
	}
	if !synced {
		log.Printf("appointment %s changed during mirror %s, left pending", a.ID, operation)
		return a
	}
	a.SyncStatus = SyncSynced
	return a
}

func (s *Service) toEvent(a Appointment) calendar.Event {
	summary := a.Summary
	if summary == "" {
		summary = fmt.Sprintf("Turno: %s", a.ClientName)
	}
	return calendar.Event{
		Summary:     summary,
		Description: a.Description,
		Start:       a.StartTime,
		End:         a.EndTime,
	}
}
