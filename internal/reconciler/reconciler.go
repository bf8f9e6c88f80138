// Package reconciler retries calendar mirror writes that failed during the
// call. The local store is authoritative; this loop only pushes divergence
// outward, it never pulls mirror state back in.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/elena-voice/elena/internal/appointment"
)

const defaultBatchSize = 50

type Reconciler struct {
	appointments *appointment.Service
	interval     time.Duration
	batchSize    int
}

func New(appointments *appointment.Service, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Reconciler{
		appointments: appointments,
		interval:     interval,
		batchSize:    defaultBatchSize,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

// Sweep retries every pending record once, oldest first. Records that fail
// again stay pending and are picked up by the next sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	pending, err := r.appointments.PendingSync(ctx, r.batchSize)
	if err != nil {
		log.Printf("reconciler: list pending failed: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	retried := 0
	for _, a := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := r.appointments.Sync(ctx, a); err != nil {
			log.Printf("reconciler: %v", err)
			continue
		}
		retried++
	}
	log.Printf("reconciler: synced %d/%d pending appointments", retried, len(pending))
}
