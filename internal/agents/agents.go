// Package agents resolves the conversational agent that speaks for a
// business on calls and chat.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
)

// ErrNoAgent is returned when no active agent can serve a lead.
var ErrNoAgent = errors.New("agents: no agent available")

// Agent is a configured conversational agent.
type Agent struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	// Handle is the conversation engine's identifier for the agent.
	Handle string `json:"handle"`
	Active bool   `json:"active"`
}

// Store looks agents up.
type Store interface {
	Get(ctx context.Context, id string) (*Agent, error)
	// ForCategory returns the owner's best active agent for a category,
	// preferring an exact category match over a general-purpose agent.
	ForCategory(ctx context.Context, ownerID, category string) (*Agent, error)
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads agents from Postgres.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates an agent store.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("agents: db required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, COALESCE(category, ''), COALESCE(handle, ''), active
		FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func (s *PostgresStore) ForCategory(ctx context.Context, ownerID, category string) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, COALESCE(category, ''), COALESCE(handle, ''), active
		FROM agents
		WHERE owner_id = $1 AND active AND (category = $2 OR COALESCE(category, '') = '')
		ORDER BY (category = $2) DESC, created_at ASC
		LIMIT 1`, ownerID, strings.TrimSpace(category))
	return scanAgent(row)
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Category, &a.Handle, &a.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAgent
		}
		return nil, fmt.Errorf("agents: scan: %w", err)
	}
	return &a, nil
}

// LeadAssigner persists an agent choice on a lead.
type LeadAssigner interface {
	AssignAgent(ctx context.Context, leadID, agentID string) error
}

// Assigner resolves and, when missing, assigns an agent to a lead.
type Assigner struct {
	agents Store
	leads  LeadAssigner
	logger *logging.Logger
}

// NewAssigner creates an auto-assigner.
func NewAssigner(agents Store, leads LeadAssigner, logger *logging.Logger) *Assigner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Assigner{agents: agents, leads: leads, logger: logger}
}

// Ensure returns the lead's agent. When currentAgentID is empty or points at
// an inactive agent, the owner's agent for category is assigned.
func (a *Assigner) Ensure(ctx context.Context, leadID, ownerID, currentAgentID, category string) (*Agent, error) {
	if currentAgentID != "" {
		agent, err := a.agents.Get(ctx, currentAgentID)
		if err == nil && agent.Active {
			return agent, nil
		}
		if err != nil && !errors.Is(err, ErrNoAgent) {
			return nil, err
		}
	}
	agent, err := a.agents.ForCategory(ctx, ownerID, category)
	if err != nil {
		return nil, err
	}
	if err := a.leads.AssignAgent(ctx, leadID, agent.ID); err != nil {
		return nil, fmt.Errorf("agents: assign: %w", err)
	}
	a.logger.Info("agent auto-assigned", "lead_id", leadID, "agent_id", agent.ID, "category", category)
	return agent, nil
}
