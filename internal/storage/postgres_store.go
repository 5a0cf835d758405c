package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/ride-sharing/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) SaveRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(id, owner_id, vehicle_number, category, origin, destination, offered_seats, remaining_seats, status, offered_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.OwnerID, r.VehicleNumber, r.Category, r.Origin, r.Destination, r.OfferedSeats, r.RemainingSeats, string(r.Status), r.OfferedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save ride %s: %w", r.ID, err)
	}
	return nil
}

func (p *PostgresStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `UPDATE rides SET remaining_seats=$1, status=$2, updated_at=$3 WHERE id=$4`,
		r.RemainingSeats, string(r.Status), r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update ride %s: %w", r.ID, err)
	}
	return nil
}

func (p *PostgresStore) SaveSelection(ctx context.Context, s models.Selection) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO ride_selections(ride_id, rider_id, seats, selected_at) VALUES($1,$2,$3,$4)`,
		s.RideID, s.RiderID, s.Seats, s.SelectedAt)
	if err != nil {
		return fmt.Errorf("save selection on ride %s: %w", s.RideID, err)
	}
	return nil
}

// Migrate executes a schema script, e.g. migrations/001_create_rides.sql.
func (p *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := p.db.ExecContext(ctx, script)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
