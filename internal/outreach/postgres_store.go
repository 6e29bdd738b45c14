package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `id, owner_id, lead_id, phone, COALESCE(agent_id, ''), channel, status,
	offered_slots, COALESCE(promised_date, ''), COALESCE(last_message_id, ''), created_at, updated_at`

// PostgresRecordStore stores outreach records in Postgres.
type PostgresRecordStore struct {
	db DB
}

func NewPostgresRecordStore(db DB) *PostgresRecordStore {
	if db == nil {
		panic("outreach: db required")
	}
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) FindActiveByPhone(ctx context.Context, phone string) (*Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+`
		FROM outreach_records
		WHERE phone = $1 AND status IN ('open', 'pending_response')
		ORDER BY updated_at DESC
		LIMIT 1`, phone)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outreach: find active by phone: %w", err)
	}
	return rec, nil
}

// activePhoneIndex keeps one open or pending record per phone.
const activePhoneIndex = "idx_outreach_records_active_phone"

// Upsert inserts rec, or updates it in place when the id already exists. When
// another active record already holds the phone, that record is updated
// instead.
func (s *PostgresRecordStore) Upsert(ctx context.Context, rec Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	saved, err := s.upsert(ctx, rec)
	if !isActivePhoneConflict(err) {
		return saved, err
	}
	existing, ferr := s.FindActiveByPhone(ctx, rec.Phone)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil || existing.ID == rec.ID {
		return nil, err
	}
	rec.ID = existing.ID
	return s.upsert(ctx, rec)
}

func (s *PostgresRecordStore) upsert(ctx context.Context, rec Record) (*Record, error) {
	slots := rec.OfferedSlots
	if slots == nil {
		slots = []OfferedSlot{}
	}
	offered, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("outreach: marshal offered slots: %w", err)
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO outreach_records
			(id, owner_id, lead_id, phone, agent_id, channel, status, offered_slots, promised_date, last_message_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''))
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			lead_id = EXCLUDED.lead_id,
			phone = EXCLUDED.phone,
			agent_id = EXCLUDED.agent_id,
			channel = EXCLUDED.channel,
			status = EXCLUDED.status,
			offered_slots = EXCLUDED.offered_slots,
			promised_date = EXCLUDED.promised_date,
			last_message_id = EXCLUDED.last_message_id,
			updated_at = now()
		RETURNING created_at, updated_at`,
		rec.ID, rec.OwnerID, rec.LeadID, rec.Phone, rec.AgentID, rec.Channel, string(rec.Status),
		offered, rec.PromisedDate, rec.LastMessageID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("outreach: upsert record: %w", err)
	}
	return &rec, nil
}

func isActivePhoneConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activePhoneIndex
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		status  string
		offered []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.LeadID, &rec.Phone, &rec.AgentID, &rec.Channel, &status,
		&offered, &rec.PromisedDate, &rec.LastMessageID, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = RecordStatus(status)
	if len(offered) > 0 {
		if err := json.Unmarshal(offered, &rec.OfferedSlots); err != nil {
			return nil, fmt.Errorf("decode offered slots: %w", err)
		}
	}
	return &rec, nil
}
