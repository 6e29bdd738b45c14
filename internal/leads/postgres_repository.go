package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const leadColumns = `id, owner_id, COALESCE(resource_id, ''), COALESCE(agent_id, ''), first_name, phone,
	status, next_retry_at, max_attempts, agent_variables, created_at, updated_at`

// PostgresStore stores leads and call attempts in Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore initializes a store backed by pgx.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("leads: db required")
	}
	return &PostgresStore{db: db}
}

// FindEligible returns leads in one of the statuses whose retry gate elapsed.
// Leads are returned oldest due first.
func (s *PostgresStore) FindEligible(ctx context.Context, q EligibilityQuery) ([]Lead, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var due *time.Time
	if !q.DueBefore.IsZero() {
		t := q.DueBefore.UTC()
		due = &t
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `SELECT `+leadColumns+`
		FROM leads
		WHERE status = ANY($1)
		  AND ($2::timestamptz IS NULL OR (next_retry_at IS NOT NULL AND next_retry_at <= $2))
		ORDER BY next_retry_at ASC NULLS FIRST, created_at ASC
		LIMIT $3`, StatusStrings(q.Statuses), due, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: find eligible: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan eligible: %w", err)
		}
		out = append(out, *lead)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: get: %w", err)
	}
	return lead, nil
}

// Transition is the atomic claim: the update only applies while the row still
// holds the expected status.
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status, nextRetryAt *time.Time) (bool, error) {
	if from != to && !CanTransition(from, to) {
		return false, ErrIllegalTransition
	}
	var next *time.Time
	if nextRetryAt != nil {
		t := nextRetryAt.UTC()
		next = &t
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE leads
		SET status = $3, next_retry_at = $4, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to), next)
	if err != nil {
		return false, fmt.Errorf("leads: transition %s -> %s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AssignAgent(ctx context.Context, id, agentID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE leads SET agent_id = $2, updated_at = now() WHERE id = $1`, id, agentID)
	if err != nil {
		return fmt.Errorf("leads: assign agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (s *PostgresStore) LatestAttempt(ctx context.Context, leadID string) (*CallAttempt, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lead_id, attempt_no, COALESCE(call_id, ''), started_at, ended_at, outcome
		FROM call_attempts
		WHERE lead_id = $1
		ORDER BY attempt_no DESC
		LIMIT 1`, leadID)
	var (
		a       CallAttempt
		outcome string
	)
	if err := row.Scan(&a.ID, &a.LeadID, &a.AttemptNo, &a.CallID, &a.StartedAt, &a.EndedAt, &outcome); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("leads: latest attempt: %w", err)
	}
	a.Outcome = AttemptOutcome(outcome)
	return &a, nil
}

func (s *PostgresStore) HasInFlightAttempt(ctx context.Context, leadID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM call_attempts
			WHERE lead_id = $1 AND outcome = 'initiated' AND ended_at IS NULL
		)`, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("leads: in-flight attempt: %w", err)
	}
	return exists, nil
}

// InsertAttempt appends a call attempt. Unique violations on the in-flight
// partial index or on (lead_id, attempt_no) map to ErrAttemptConflict.
func (s *PostgresStore) InsertAttempt(ctx context.Context, attempt CallAttempt) (*CallAttempt, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO call_attempts (id, lead_id, attempt_no, started_at, outcome)
		VALUES ($1, $2, $3, $4, $5)`,
		attempt.ID, attempt.LeadID, attempt.AttemptNo, attempt.StartedAt.UTC(), string(attempt.Outcome))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAttemptConflict
		}
		return nil, fmt.Errorf("leads: insert attempt: %w", err)
	}
	return &attempt, nil
}

func (s *PostgresStore) AttachCall(ctx context.Context, attemptID, callID string) error {
	if _, err := s.db.Exec(ctx, `UPDATE call_attempts SET call_id = $2 WHERE id = $1`, attemptID, callID); err != nil {
		return fmt.Errorf("leads: attach call: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishAttempt(ctx context.Context, attemptID string, outcome AttemptOutcome, endedAt time.Time) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE call_attempts SET outcome = $2, ended_at = $3
		WHERE id = $1`, attemptID, string(outcome), endedAt.UTC()); err != nil {
		return fmt.Errorf("leads: finish attempt: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead      Lead
		status    string
		variables []byte
	)
	if err := row.Scan(
		&lead.ID, &lead.OwnerID, &lead.ResourceID, &lead.AgentID, &lead.FirstName, &lead.Phone,
		&status, &lead.NextRetryAt, &lead.MaxAttempts, &variables, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Status = Status(status)
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &lead.Variables); err != nil {
			lead.Variables = AgentVariables{}
		}
	}
	return &lead, nil
}
