package appointment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/elena-voice/elena/internal/calendar"
)

// recordingMirror remembers every call and can be told to fail.
type recordingMirror struct {
	fail    bool
	events  map[string]calendar.Event
	nextID  int
	deletes []string
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{events: make(map[string]calendar.Event)}
}

func (m *recordingMirror) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	if m.fail {
		return "", errors.New("mirror unavailable")
	}
	m.nextID++
	id := fmt.Sprintf("evt-%d", m.nextID)
	m.events[id] = ev
	return id, nil
}

func (m *recordingMirror) UpdateEvent(_ context.Context, id string, ev calendar.Event) error {
	if m.fail {
		return errors.New("mirror unavailable")
	}
	m.events[id] = ev
	return nil
}

func (m *recordingMirror) DeleteEvent(_ context.Context, id string) error {
	if m.fail {
		return errors.New("mirror unavailable")
	}
	delete(m.events, id)
	m.deletes = append(m.deletes, id)
	return nil
}

func (m *recordingMirror) ListEvents(_ context.Context, _, _ time.Time, _ int) ([]calendar.Event, error) {
	return nil, nil
}

func newMirroredService(t *testing.T) (*Service, *recordingMirror) {
	t.Helper()
	mirror := newRecordingMirror()
	return NewService(NewMemoryStore(), mirror, time.UTC, time.Second, nil), mirror
}

func create(t *testing.T, svc *Service, name string, start time.Time) Appointment {
	t.Helper()
	a, err := svc.Create(context.Background(), CreateParams{
		ClientName:  name,
		ClientPhone: "+54911",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestCreateMirrorsAndMarksSynced(t *testing.T) {
	svc, mirror := newMirroredService(t)

	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	if a.SyncStatus != SyncSynced {
		t.Fatalf("sync status = %q, want synced", a.SyncStatus)
	}
	if a.ExternalID == "" {
		t.Fatalf("external id missing")
	}
	if _, ok := mirror.events[a.ExternalID]; !ok {
		t.Fatalf("mirror missing event %q", a.ExternalID)
	}
	if mirror.events[a.ExternalID].Summary != "Turno: Marta" {
		t.Fatalf("summary fallback = %q", mirror.events[a.ExternalID].Summary)
	}
}

func TestCreateSurvivesMirrorOutage(t *testing.T) {
	svc, mirror := newMirroredService(t)
	mirror.fail = true

	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	if a.SyncStatus != SyncPending {
		t.Fatalf("sync status = %q, want pending", a.SyncStatus)
	}

	// The local record stands regardless of the mirror.
	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("status = %q", got.Status)
	}

	pending, err := svc.PendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newMirroredService(t)
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if _, err := svc.Create(context.Background(), CreateParams{
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}); err == nil {
		t.Fatalf("missing client name must fail")
	}
	if _, err := svc.Create(context.Background(), CreateParams{
		ClientName: "Marta",
		StartTime:  start,
		EndTime:    start,
	}); err == nil {
		t.Fatalf("start == end must fail")
	}
}

func TestUpdateMergesAndRemirrors(t *testing.T) {
	svc, mirror := newMirroredService(t)
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	summary := "Corte"
	updated, err := svc.Update(context.Background(), UpdateParams{ID: a.ID, Summary: &summary})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Summary != "Corte" {
		t.Fatalf("summary = %q", updated.Summary)
	}
	if updated.ClientName != "Marta" || !updated.StartTime.Equal(a.StartTime) {
		t.Fatalf("merge lost fields: %+v", updated)
	}
	if updated.SyncStatus != SyncSynced {
		t.Fatalf("sync status = %q", updated.SyncStatus)
	}
	if mirror.events[a.ExternalID].Summary != "Corte" {
		t.Fatalf("mirror not updated: %+v", mirror.events[a.ExternalID])
	}
}

func TestUpdateDeletedIsNotFound(t *testing.T) {
	svc, _ := newMirroredService(t)
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	summary := "x"
	if _, err := svc.Update(context.Background(), UpdateParams{ID: a.ID, Summary: &summary}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSoftDeletesAndRemovesMirrorEvent(t *testing.T) {
	svc, mirror := newMirroredService(t)
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mirror.deletes) != 1 || mirror.deletes[0] != a.ExternalID {
		t.Fatalf("mirror deletes = %v", mirror.deletes)
	}

	// The row survives as a soft-deleted record.
	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deleted() || got.SyncStatus != SyncSynced {
		t.Fatalf("record = %+v", got)
	}

	// Listings hide it.
	list, _ := svc.ListByDay(context.Background(), a.StartTime)
	if len(list) != 0 {
		t.Fatalf("deleted appointment listed: %+v", list)
	}

	// Repeat and unknown deletes succeed.
	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := svc.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("unknown delete: %v", err)
	}
}

func TestDeleteUnmirroredRecordNeedsNoMirrorCall(t *testing.T) {
	svc, mirror := newMirroredService(t)
	mirror.fail = true
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	// Record never reached the mirror. Deleting it has nothing external to
	// clean up, so it syncs even while the mirror is down.
	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := svc.Get(context.Background(), a.ID)
	if got.SyncStatus != SyncSynced {
		t.Fatalf("sync status = %q, want synced", got.SyncStatus)
	}
}

func TestListByDayBoundsAreLocal(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc := NewService(NewMemoryStore(), nil, loc, time.Second, nil)

	// 01:00 local on March 10 is 04:00 UTC; a UTC day window would miss it.
	early := create(t, svc, "Marta", time.Date(2026, 3, 10, 1, 0, 0, 0, loc))
	create(t, svc, "Pedro", time.Date(2026, 3, 11, 1, 0, 0, 0, loc))

	list, err := svc.ListByDay(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != early.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestSyncWithStaleSnapshotKeepsCallerUpdate(t *testing.T) {
	svc, mirror := newMirroredService(t)
	mirror.fail = true
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	// Snapshot taken the way the background sweep takes it.
	pending, err := svc.PendingSync(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	stale := pending[0]

	// A caller update lands after the snapshot, mirror still down.
	name := "Marta Gómez"
	newStart := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(time.Hour)
	if _, err := svc.Update(context.Background(), UpdateParams{
		ID:         a.ID,
		ClientName: &name,
		StartTime:  &newStart,
		EndTime:    &newEnd,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	mirror.fail = false
	if err := svc.Sync(context.Background(), stale); err == nil {
		t.Fatalf("stale sync must report the record as still pending")
	}

	got, err := svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClientName != "Marta Gómez" || !got.StartTime.Equal(newStart) {
		t.Fatalf("caller update reverted by stale sync: %+v", got)
	}
	if got.SyncStatus != SyncPending {
		t.Fatalf("sync status = %q, want pending after raced push", got.SyncStatus)
	}
	// The event id from the raced create is kept so the next pass updates
	// the existing event instead of duplicating it.
	if got.ExternalID == "" {
		t.Fatalf("external id lost after raced push")
	}

	if err := svc.Sync(context.Background(), got); err != nil {
		t.Fatalf("fresh sync: %v", err)
	}
	final, _ := svc.Get(context.Background(), a.ID)
	if final.SyncStatus != SyncSynced {
		t.Fatalf("sync status = %q, want synced", final.SyncStatus)
	}
	if mirror.nextID != 1 {
		t.Fatalf("mirror created %d events, want 1", mirror.nextID)
	}
	if ev := mirror.events[final.ExternalID]; !ev.Start.Equal(newStart) {
		t.Fatalf("mirror event not refreshed: %+v", ev)
	}
}

func TestSyncRetryReportsPersistentFailure(t *testing.T) {
	svc, mirror := newMirroredService(t)
	mirror.fail = true
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	if err := svc.Sync(context.Background(), a); err == nil {
		t.Fatalf("sync should fail while the mirror is down")
	}

	mirror.fail = false
	if err := svc.Sync(context.Background(), a); err != nil {
		t.Fatalf("sync after recovery: %v", err)
	}
	got, _ := svc.Get(context.Background(), a.ID)
	if got.SyncStatus != SyncSynced {
		t.Fatalf("sync status = %q", got.SyncStatus)
	}
}

func TestNilMirrorIsValid(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, time.UTC, time.Second, nil)
	a := create(t, svc, "Marta", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	if a.ExternalID != "" {
		t.Fatalf("external id set without a mirror")
	}
}
