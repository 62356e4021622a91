// internal/reservation/service.go
package reservation

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the reservation service. Every
// transition validates the caller's ownership and the current status before
// touching inventory, and transitions for one reservation id never run
// concurrently.
type Service interface {
	Create(ctx context.Context, itemID uuid.UUID) (*Reservation, error)
	Confirm(ctx context.Context, id uuid.UUID) (*Reservation, error)
	Borrow(ctx context.Context, id uuid.UUID) (*Reservation, error)
	Return(ctx context.Context, id uuid.UUID) (*Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) error

	// ExpireDue reclaims every pending reservation whose confirmation
	// deadline has lapsed and reports how many were expired. Failures on
	// individual records are logged and skipped.
	ExpireDue(ctx context.Context) (int, error)

	ActiveForHolder(ctx context.Context) ([]*Reservation, error)
	HistoryForHolder(ctx context.Context, limit, offset int) ([]*Reservation, error)
	All(ctx context.Context) ([]*Reservation, error)
}

// EventSink receives domain events for external consumers, such as the
// ratings service reacting to completed loans.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event Event)

func (f EventSinkFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}
