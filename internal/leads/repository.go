package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the schedulers drive leads through.
type Store interface {
	FindEligible(ctx context.Context, q EligibilityQuery) ([]Lead, error)
	Get(ctx context.Context, id string) (*Lead, error)
	// Transition moves a lead from an expected status to a new one in a single
	// conditional write. It returns false when the lead was no longer in from.
	Transition(ctx context.Context, id string, from, to Status, nextRetryAt *time.Time) (bool, error)
	AssignAgent(ctx context.Context, id, agentID string) error

	LatestAttempt(ctx context.Context, leadID string) (*CallAttempt, error)
	HasInFlightAttempt(ctx context.Context, leadID string) (bool, error)
	InsertAttempt(ctx context.Context, attempt CallAttempt) (*CallAttempt, error)
	AttachCall(ctx context.Context, attemptID, callID string) error
	FinishAttempt(ctx context.Context, attemptID string, outcome AttemptOutcome, endedAt time.Time) error
}

// MemoryStore is an in-memory Store used by tests and local runs. It enforces
// the same invariants as the database constraints.
type MemoryStore struct {
	mu       sync.Mutex
	leads    map[string]*Lead
	order    []string
	attempts map[string][]CallAttempt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:    make(map[string]*Lead),
		attempts: make(map[string][]CallAttempt),
	}
}

// Put inserts or replaces a lead.
func (m *MemoryStore) Put(lead Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if _, ok := m.leads[lead.ID]; !ok {
		m.order = append(m.order, lead.ID)
	}
	copyLead := lead
	m.leads[lead.ID] = &copyLead
}

// Attempts returns a copy of a lead's attempts in insertion order.
func (m *MemoryStore) Attempts(leadID string) []CallAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallAttempt(nil), m.attempts[leadID]...)
}

func (m *MemoryStore) FindEligible(ctx context.Context, q EligibilityQuery) ([]Lead, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lead
	for _, id := range m.order {
		lead := m.leads[id]
		if !statusIn(lead.Status, q.Statuses) {
			continue
		}
		if !q.DueBefore.IsZero() && !lead.Due(q.DueBefore) {
			continue
		}
		out = append(out, *lead)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	copyLead := *lead
	return &copyLead, nil
}

func (m *MemoryStore) Transition(ctx context.Context, id string, from, to Status, nextRetryAt *time.Time) (bool, error) {
	if from != to && !CanTransition(from, to) {
		return false, ErrIllegalTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return false, ErrLeadNotFound
	}
	if lead.Status != from {
		return false, nil
	}
	lead.Status = to
	lead.NextRetryAt = nextRetryAt
	lead.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryStore) AssignAgent(ctx context.Context, id, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.AgentID = agentID
	return nil
}

func (m *MemoryStore) LatestAttempt(ctx context.Context, leadID string) (*CallAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempts := m.attempts[leadID]
	if len(attempts) == 0 {
		return nil, nil
	}
	sorted := append([]CallAttempt(nil), attempts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AttemptNo < sorted[j].AttemptNo })
	latest := sorted[len(sorted)-1]
	return &latest, nil
}

func (m *MemoryStore) HasInFlightAttempt(ctx context.Context, leadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts[leadID] {
		if a.InFlight() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertAttempt(ctx context.Context, attempt CallAttempt) (*CallAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts[attempt.LeadID] {
		if existing.AttemptNo == attempt.AttemptNo {
			return nil, ErrAttemptConflict
		}
		if attempt.InFlight() && existing.InFlight() {
			return nil, ErrAttemptConflict
		}
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	m.attempts[attempt.LeadID] = append(m.attempts[attempt.LeadID], attempt)
	return &attempt, nil
}

func (m *MemoryStore) AttachCall(ctx context.Context, attemptID, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAttempt(attemptID)
	if a == nil {
		return ErrLeadNotFound
	}
	a.CallID = callID
	return nil
}

func (m *MemoryStore) FinishAttempt(ctx context.Context, attemptID string, outcome AttemptOutcome, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAttempt(attemptID)
	if a == nil {
		return ErrLeadNotFound
	}
	a.Outcome = outcome
	a.EndedAt = &endedAt
	return nil
}

func (m *MemoryStore) findAttempt(attemptID string) *CallAttempt {
	for leadID := range m.attempts {
		for i := range m.attempts[leadID] {
			if m.attempts[leadID][i].ID == attemptID {
				return &m.attempts[leadID][i]
			}
		}
	}
	return nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
