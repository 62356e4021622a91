// internal/inventory/ledger.go
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotAvailable is returned by Reserve when an item has no copies left.
var ErrNotAvailable = errors.New("no copies available")

// Ledger owns the per-item available-copy counter. Reserve and Release are
// the only legal mutators of the count; every other component must go
// through them.
type Ledger interface {
	// Reserve takes one unit of the item, failing with ErrNotAvailable when
	// the count is already zero. The count never goes negative.
	Reserve(ctx context.Context, itemID uuid.UUID) error
	// Release puts one unit back unconditionally.
	Release(ctx context.Context, itemID uuid.UUID) error
}

// PostgresLedger implements Ledger on the items read model. Both mutations
// are single atomic statements so two racing Reserve calls can never both
// take the last copy.
type PostgresLedger struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresLedger creates a ledger backed by the given database.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		tracer: otel.Tracer("librarium/inventory"),
	}
}

func (l *PostgresLedger) Reserve(ctx context.Context, itemID uuid.UUID) error {
	ctx, span := l.tracer.Start(ctx, "inventory.reserve",
		trace.WithAttributes(attribute.String("item.id", itemID.String())),
	)
	defer span.End()

	res, err := l.db.ExecContext(ctx, `
		UPDATE items
		SET quantity_available = quantity_available - 1
		WHERE id = $1 AND quantity_available > 0
	`, itemID)
	if err != nil {
		return fmt.Errorf("reserve unit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve unit rows affected: %w", err)
	}
	if affected == 0 {
		span.SetAttributes(attribute.Bool("inventory.exhausted", true))
		return ErrNotAvailable
	}

	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, itemID uuid.UUID) error {
	ctx, span := l.tracer.Start(ctx, "inventory.release",
		trace.WithAttributes(attribute.String("item.id", itemID.String())),
	)
	defer span.End()

	_, err := l.db.ExecContext(ctx, `
		UPDATE items
		SET quantity_available = quantity_available + 1
		WHERE id = $1
	`, itemID)
	if err != nil {
		return fmt.Errorf("release unit: %w", err)
	}

	return nil
}
