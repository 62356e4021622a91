// internal/reservation/store.go
package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the durable collection of reservation records. Implementations
// only persist and query; all validation lives in the service.
type Store interface {
	Save(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindByIDAndHolder(ctx context.Context, id, holderID uuid.UUID) (*Reservation, error)
	FindByStatusAndDeadlineBefore(ctx context.Context, status Status, t time.Time) ([]*Reservation, error)
	FindActiveByHolder(ctx context.Context, holderID uuid.UUID) ([]*Reservation, error)
	FindPastByHolder(ctx context.Context, holderID uuid.UUID, limit, offset int) ([]*Reservation, error)
	FindAll(ctx context.Context) ([]*Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresStore implements Store on the reservations table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a reservation store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reservationColumns = "id, holder_id, item_id, status, created_at, deadline"

func (s *PostgresStore) Save(ctx context.Context, r *Reservation) error {
	query := `
		INSERT INTO reservations (id, holder_id, item_id, status, created_at, deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status
	`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.HolderID, r.ItemID, r.Status, r.CreatedAt, r.Deadline)
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByIDAndHolder(ctx context.Context, id, holderID uuid.UUID) (*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1 AND holder_id = $2
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id, holderID))
}

func (s *PostgresStore) FindByStatusAndDeadlineBefore(ctx context.Context, status Status, t time.Time) ([]*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = $1 AND deadline < $2
		ORDER BY created_at ASC
	`
	return s.queryMany(ctx, query, status, t)
}

func (s *PostgresStore) FindActiveByHolder(ctx context.Context, holderID uuid.UUID) ([]*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE holder_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
	`
	return s.queryMany(ctx, query, holderID, StatusPending, StatusConfirmed, StatusBorrowed)
}

func (s *PostgresStore) FindPastByHolder(ctx context.Context, holderID uuid.UUID, limit, offset int) ([]*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE holder_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return s.queryMany(ctx, query, holderID, StatusReturned, limit, offset)
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]*Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		ORDER BY created_at DESC
	`
	return s.queryMany(ctx, query)
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reservation rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Reservation, error) {
	r := &Reservation{}
	err := row.Scan(&r.ID, &r.HolderID, &r.ItemID, &r.Status, &r.CreatedAt, &r.Deadline)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...interface{}) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*Reservation
	for rows.Next() {
		r := &Reservation{}
		if err := rows.Scan(&r.ID, &r.HolderID, &r.ItemID, &r.Status, &r.CreatedAt, &r.Deadline); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}

	return reservations, nil
}
