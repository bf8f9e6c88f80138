package appointment

import (
	"errors"
	"time"
)

type Status string

const (
	// StatusConfirmed is the only live state; there is no tentative state.
	StatusConfirmed Status = "confirmed"
	// StatusDeleted is a soft marker. Rows are never physically removed.
	StatusDeleted Status = "deleted"
)

type SyncStatus string

const (
	// SyncPending means the local record and the external mirror may have
	// diverged: the mirror write has not been confirmed yet, or it failed.
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

var ErrNotFound = errors.New("appointment not found")

// Appointment is the locally authoritative booking record. ExternalID is
// the mirror's own event identifier, empty until the mirror acknowledges.
type Appointment struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id,omitempty"`
	Summary     string    `json:"summary"`
	ClientName  string    `json:"client_name"`
	ClientPhone string    `json:"client_phone"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description"`

	Status     Status     `json:"status"`
	SyncStatus SyncStatus `json:"sync_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Appointment) Deleted() bool {
	return a.Status == StatusDeleted
}
