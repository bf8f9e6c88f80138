package appointment

import (
	"context"
	"time"
)

// Store persists appointment records. Implementations must keep soft-deleted
// rows readable: list operations filter them, Get does not.
type Store interface {
	Upsert(ctx context.Context, a Appointment) error
	Get(ctx context.Context, id string) (Appointment, error)
	// ListRange returns non-deleted appointments with start_time in [from, to),
	// ordered by start_time ascending.
	ListRange(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// ListByPhone returns non-deleted appointments for a client phone,
	// ordered by start_time ascending.
	ListByPhone(ctx context.Context, phone string) ([]Appointment, error)
	// ListPendingSync returns records whose mirror state may have diverged,
	// soft-deleted ones included, oldest update first.
	ListPendingSync(ctx context.Context, limit int) ([]Appointment, error)
	// SetSyncState records a mirror push outcome. The external event id is
	// attached regardless, so a later retry updates instead of duplicating;
	// sync_status flips to synced only when the record is unchanged since
	// ifUpdatedAt. A record rewritten mid-push stays pending.
	SetSyncState(ctx context.Context, id, externalID string, ifUpdatedAt time.Time) (synced bool, err error)
	Close() error
}
