// internal/reservation/domain.go
package reservation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle stage of a reservation. Statuses only ever move
// forward: pending -> confirmed -> borrowed -> returned. Expired and
// cancelled reservations are deleted rather than kept under a terminal
// status, and deletion always releases the held inventory unit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusBorrowed  Status = "borrowed"
	StatusReturned  Status = "returned"
)

// ConfirmationWindow is how long a pending hold may wait before it must be
// confirmed. After the deadline the hold is reclaimed and its unit released.
const ConfirmationWindow = 2 * time.Hour

// Reservation represents a member's hold on (and eventually loan of) a
// single copy of an item. A pending or confirmed reservation accounts for
// exactly one reserved inventory unit; a borrowed one accounts for the copy
// physically out with the holder.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	HolderID  uuid.UUID `json:"holder_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
}

// Live reports whether the reservation still accounts for an inventory unit.
func (r *Reservation) Live() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed || r.Status == StatusBorrowed
}

// Event represents a domain event related to a reservation.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ReservationCreatedEvent is published when a new hold is placed.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	HolderID      uuid.UUID `json:"holder_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Deadline      time.Time `json:"deadline"`
}

// ReservationExpiredEvent is published when a lapsed hold is reclaimed.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
}

// ItemReturnedEvent is published when a loan completes. The ratings service
// consumes it to recompute averages for finished loans.
type ItemReturnedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	HolderID      uuid.UUID `json:"holder_id"`
	ItemID        uuid.UUID `json:"item_id"`
	ReturnedAt    time.Time `json:"returned_at"`
}
