// internal/reservation/implementation.go
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"librarium/internal/clients"
	"librarium/internal/clock"
	"librarium/internal/identity"
	"librarium/internal/inventory"
)

// Catalog resolves item metadata for error messages and existence checks.
type Catalog interface {
	Item(ctx context.Context, id uuid.UUID) (*clients.Item, error)
}

// service implements the Service interface.
type service struct {
	store    Store
	ledger   inventory.Ledger
	catalog  Catalog
	identity identity.Resolver
	clock    clock.Clock
	events   EventSink
	locks    keyedMutex
	limiter  *rate.Limiter
	tracer   trace.Tracer
}

// NewService creates a new reservation service instance.
func NewService(store Store, ledger inventory.Ledger, catalog Catalog, resolver identity.Resolver, clk clock.Clock, events EventSink, opts ...ServiceOption) Service {
	svc := &service{
		store:    store,
		ledger:   ledger,
		catalog:  catalog,
		identity: resolver,
		clock:    clk,
		events:   events,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 20),
		tracer:   otel.Tracer("librarium/reservation"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ServiceOption func(*service)

// WithCreateLimiter overrides the rate limiter applied to hold creation.
func WithCreateLimiter(l *rate.Limiter) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// keyedMutex serializes state transitions per reservation id, so a manual
// cancel racing the sweeper (or two confirm attempts) can never both pass
// their precondition checks. Entries are kept for the process lifetime.
type keyedMutex struct {
	mus sync.Map
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	v, _ := k.mus.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create places a new hold: it consumes one inventory unit and persists a
// pending reservation with the confirmation deadline set.
func (s *service) Create(ctx context.Context, itemID uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.create",
		trace.WithAttributes(attribute.String("item.id", itemID.String())),
	)
	defer span.End()

	holderID, err := s.identity.CurrentHolder(ctx)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	item, err := s.catalog.Item(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up item: %w", err)
	}

	if err := s.ledger.Reserve(ctx, itemID); err != nil {
		if errors.Is(err, inventory.ErrNotAvailable) {
			span.SetAttributes(attribute.Bool("inventory.exhausted", true))
			return nil, fmt.Errorf("%q (%s): %w", item.Title, item.ID, ErrNotAvailable)
		}
		return nil, fmt.Errorf("failed to reserve unit: %w", err)
	}

	now := s.clock.Now()
	r := &Reservation{
		ID:        uuid.New(),
		HolderID:  holderID,
		ItemID:    itemID,
		Status:    StatusPending,
		CreatedAt: now,
		Deadline:  now.Add(ConfirmationWindow),
	}

	if err := s.store.Save(ctx, r); err != nil {
		// Put the unit back so a failed save does not leak inventory.
		if relErr := s.ledger.Release(ctx, itemID); relErr != nil {
			log.Printf("Failed to compensate reserved unit for item %s: %v", itemID, relErr)
		}
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	s.publish(ctx, Event{Type: "ReservationCreated", Data: ReservationCreatedEvent{
		ReservationID: r.ID,
		HolderID:      r.HolderID,
		ItemID:        r.ItemID,
		Deadline:      r.Deadline,
	}})

	return r, nil
}

// Confirm moves a pending reservation to confirmed. A reservation past its
// deadline is reclaimed on the spot and the confirm is rejected.
func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.confirm",
		trace.WithAttributes(attribute.String("reservation.id", id.String())),
	)
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.loadOwned(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, &InvalidTransitionError{Op: "confirm", Required: StatusPending, Actual: r.Status}
	}

	// Strictly after the deadline counts as expired; exactly at the
	// deadline is still confirmable.
	if s.clock.Now().After(r.Deadline) {
		span.SetAttributes(attribute.Bool("reservation.lapsed", true))
		if err := s.expireOne(ctx, r); err != nil {
			return nil, err
		}
		return nil, &InvalidTransitionError{Op: "confirm", Reason: "confirmation window has passed"}
	}

	r.Status = StatusConfirmed
	if err := s.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	return r, nil
}

// Borrow moves a confirmed reservation to borrowed: the copy leaves with
// the holder. The deadline no longer applies.
func (s *service) Borrow(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.borrow",
		trace.WithAttributes(attribute.String("reservation.id", id.String())),
	)
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.loadOwned(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{Op: "borrow", Required: StatusConfirmed, Actual: r.Status}
	}

	r.Status = StatusBorrowed
	if err := s.store.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	return r, nil
}

// Return finishes a loan: the unit goes back to the ledger and the record
// stays as the retained terminal state.
func (s *service) Return(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.return",
		trace.WithAttributes(attribute.String("reservation.id", id.String())),
	)
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.loadOwned(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusBorrowed {
		return nil, &InvalidTransitionError{Op: "return", Required: StatusBorrowed, Actual: r.Status}
	}

	if err := s.ledger.Release(ctx, r.ItemID); err != nil {
		return nil, fmt.Errorf("failed to release unit: %w", err)
	}

	r.Status = StatusReturned
	if err := s.store.Save(ctx, r); err != nil {
		if resErr := s.ledger.Reserve(ctx, r.ItemID); resErr != nil {
			log.Printf("Failed to compensate released unit for item %s: %v", r.ItemID, resErr)
		}
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	s.publish(ctx, Event{Type: "ItemReturned", Data: ItemReturnedEvent{
		ReservationID: r.ID,
		HolderID:      r.HolderID,
		ItemID:        r.ItemID,
		ReturnedAt:    s.clock.Now(),
	}})

	return r, nil
}

// Cancel removes a hold that has not turned into a loan yet and gives the
// unit back.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "reservation.cancel",
		trace.WithAttributes(attribute.String("reservation.id", id.String())),
	)
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.loadOwned(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return &InvalidTransitionError{
			Op:     "cancel",
			Reason: fmt.Sprintf("requires status %q or %q, have %q", StatusPending, StatusConfirmed, r.Status),
		}
	}

	if err := s.ledger.Release(ctx, r.ItemID); err != nil {
		return fmt.Errorf("failed to release unit: %w", err)
	}
	if err := s.store.Delete(ctx, r.ID); err != nil {
		if resErr := s.ledger.Reserve(ctx, r.ItemID); resErr != nil {
			log.Printf("Failed to compensate released unit for item %s: %v", r.ItemID, resErr)
		}
		return fmt.Errorf("failed to delete reservation: %w", err)
	}

	return nil
}

// ExpireDue reclaims every pending reservation whose deadline has lapsed.
// Each record is handled independently so one failure cannot block the rest
// of the batch.
func (s *service) ExpireDue(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.expire_due")
	defer span.End()

	due, err := s.store.FindByStatusAndDeadlineBefore(ctx, StatusPending, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to find due reservations: %w", err)
	}

	expired := 0
	for _, r := range due {
		ok, err := s.tryExpire(ctx, r.ID)
		if err != nil {
			log.Printf("Failed to expire reservation %s: %v", r.ID, err)
			continue
		}
		if ok {
			expired++
		}
	}

	span.SetAttributes(
		attribute.Int("reservations.due", len(due)),
		attribute.Int("reservations.expired", expired),
	)
	return expired, nil
}

// tryExpire takes the per-id lock and re-checks eligibility before
// reclaiming, since the record may have been cancelled or confirmed between
// the sweep query and now.
func (s *service) tryExpire(ctx context.Context, id uuid.UUID) (bool, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if r.Status != StatusPending || !s.clock.Now().After(r.Deadline) {
		return false, nil
	}

	if err := s.expireOne(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

// expireOne releases the held unit and deletes the record. Both the lazy
// check in Confirm and the sweeper converge here so there is a single
// release path. Callers hold the per-id lock and have verified eligibility.
func (s *service) expireOne(ctx context.Context, r *Reservation) error {
	if err := s.ledger.Release(ctx, r.ItemID); err != nil {
		return fmt.Errorf("failed to release unit: %w", err)
	}
	if err := s.store.Delete(ctx, r.ID); err != nil {
		if resErr := s.ledger.Reserve(ctx, r.ItemID); resErr != nil {
			log.Printf("Failed to compensate released unit for item %s: %v", r.ItemID, resErr)
		}
		return fmt.Errorf("failed to delete reservation: %w", err)
	}

	s.publish(ctx, Event{Type: "ReservationExpired", Data: ReservationExpiredEvent{
		ReservationID: r.ID,
		ItemID:        r.ItemID,
	}})

	return nil
}

// ActiveForHolder lists the caller's live reservations.
func (s *service) ActiveForHolder(ctx context.Context) ([]*Reservation, error) {
	holderID, err := s.identity.CurrentHolder(ctx)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return s.store.FindActiveByHolder(ctx, holderID)
}

// HistoryForHolder lists the caller's finished loans, newest first.
func (s *service) HistoryForHolder(ctx context.Context, limit, offset int) ([]*Reservation, error) {
	holderID, err := s.identity.CurrentHolder(ctx)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.FindPastByHolder(ctx, holderID, limit, offset)
}

// All lists every reservation, for the admin view.
func (s *service) All(ctx context.Context) ([]*Reservation, error) {
	return s.store.FindAll(ctx)
}

func (s *service) loadOwned(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	holderID, err := s.identity.CurrentHolder(ctx)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	r, err := s.store.FindByIDAndHolder(ctx, id, holderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	return r, nil
}

func (s *service) publish(ctx context.Context, event Event) {
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}
