package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const resourceColumns = `id, owner_id, name, kind, category, timezone, slot_duration_minutes, working_hours, date_overrides`

// PostgresStore reads resources and booked appointments.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store backed by pgx.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("availability: db required")
	}
	return &PostgresStore{db: db}
}

// GetResource loads one resource with its schedule. Schedule JSON is decoded
// leniently so malformed data yields closed days instead of errors.
func (s *PostgresStore) GetResource(ctx context.Context, resourceID string) (*Resource, error) {
	row := s.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, resourceID)
	res, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("availability: get resource: %w", err)
	}
	return res, nil
}

// ListPeers returns the owner's other resources ordered by name.
func (s *PostgresStore) ListPeers(ctx context.Context, ownerID, excludeResourceID string) ([]Resource, error) {
	rows, err := s.db.Query(ctx, `SELECT `+resourceColumns+` FROM resources
		WHERE owner_id = $1 AND id <> $2
		ORDER BY name ASC`, ownerID, excludeResourceID)
	if err != nil {
		return nil, fmt.Errorf("availability: list peers: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("availability: scan peer: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ListScheduled returns scheduled appointments overlapping [rangeStart, rangeEnd).
func (s *PostgresStore) ListScheduled(ctx context.Context, resourceID string, rangeStart, rangeEnd time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, resource_id, starts_at, ends_at, status
		FROM appointments
		WHERE resource_id = $1 AND status = 'scheduled' AND starts_at < $3 AND ends_at > $2
		ORDER BY starts_at ASC`, resourceID, rangeStart.UTC(), rangeEnd.UTC())
	if err != nil {
		return nil, fmt.Errorf("availability: list appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.ResourceID, &a.Start, &a.End, &a.Status); err != nil {
			return nil, fmt.Errorf("availability: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanResource(row pgx.Row) (*Resource, error) {
	var (
		res             Resource
		kind            string
		durationMinutes int
		hoursJSON       []byte
		overridesJSON   []byte
	)
	if err := row.Scan(
		&res.ID, &res.OwnerID, &res.Name, &kind, &res.Category,
		&res.Schedule.Timezone, &durationMinutes, &hoursJSON, &overridesJSON,
	); err != nil {
		return nil, err
	}
	res.Kind = ResourceKind(kind)
	res.Schedule.ResourceID = res.ID
	res.Schedule.SlotDuration = time.Duration(durationMinutes) * time.Minute
	res.Schedule.WorkingHours = ParseWorkingHours(hoursJSON)
	res.Schedule.Overrides = ParseOverrides(overridesJSON)
	return &res, nil
}
