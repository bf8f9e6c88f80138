// Package calendar mirrors confirmed appointments to an external calendar.
// The mirror is a best-effort follower: the local appointment store stays
// authoritative and every mirror failure is recoverable.
package calendar

import (
	"context"
	"time"
)

// Event is the mirror-side view of an appointment.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Mirror is the external calendar contract. Event identifiers are the
// mirror's own, distinct from internal appointment IDs.
type Mirror interface {
	CreateEvent(ctx context.Context, ev Event) (eventID string, err error)
	UpdateEvent(ctx context.Context, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, from, to time.Time, maxResults int) ([]Event, error)
}
