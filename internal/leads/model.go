package leads

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VarSuggestedDate is the agent variable carrying the date a contact was
// promised an earlier-slot callback for.
const VarSuggestedDate = "suggested_date"

// Lead is a prospective client driven toward a confirmed appointment.
type Lead struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	ResourceID  string         `json:"resource_id,omitempty"`
	AgentID     string         `json:"agent_id,omitempty"`
	FirstName   string         `json:"first_name"`
	Phone       string         `json:"phone"`
	Status      Status         `json:"status"`
	NextRetryAt *time.Time     `json:"next_retry_at,omitempty"`
	MaxAttempts int            `json:"max_attempts"`
	Variables   AgentVariables `json:"agent_variables,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AttemptCap returns the lead's configured cap, or fallback when unset.
func (l Lead) AttemptCap(fallback int) int {
	if l.MaxAttempts > 0 {
		return l.MaxAttempts
	}
	return fallback
}

// Due reports whether the lead's retry gate has elapsed.
func (l Lead) Due(now time.Time) bool {
	return l.NextRetryAt != nil && !l.NextRetryAt.After(now)
}

// AgentVariables is the free-form bag captured during conversations.
type AgentVariables map[string]string

// Get returns a trimmed variable value.
func (v AgentVariables) Get(key string) (string, bool) {
	if v == nil {
		return "", false
	}
	val := strings.TrimSpace(v[key])
	return val, val != ""
}

// UnmarshalJSON accepts non-string values and stringifies them.
func (v *AgentVariables) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(AgentVariables, len(raw))
	for key, val := range raw {
		switch typed := val.(type) {
		case nil:
			continue
		case string:
			out[key] = typed
		default:
			out[key] = fmt.Sprint(typed)
		}
	}
	*v = out
	return nil
}

// AttemptOutcome is the result of a single call attempt.
type AttemptOutcome string

const (
	OutcomeInitiated AttemptOutcome = "initiated"
	OutcomeCompleted AttemptOutcome = "completed"
	OutcomeNoAnswer  AttemptOutcome = "no_answer"
	OutcomeFailed    AttemptOutcome = "failed"
)

// CallAttempt is an append-only record of one outbound call try.
type CallAttempt struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"lead_id"`
	AttemptNo int            `json:"attempt_no"`
	CallID    string         `json:"call_id,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Outcome   AttemptOutcome `json:"outcome"`
}

// InFlight reports whether the attempt still blocks a new call.
func (a CallAttempt) InFlight() bool {
	return a.Outcome == OutcomeInitiated && a.EndedAt == nil
}

// EligibilityQuery selects leads for one scheduler tick. A zero DueBefore
// disables the next_retry_at gate.
type EligibilityQuery struct {
	Statuses  []Status
	DueBefore time.Time
	Limit     int
}

// Validate rejects queries with no statuses, unknown statuses, or terminal
// statuses, which no scheduler picks up.
func (q EligibilityQuery) Validate() error {
	if len(q.Statuses) == 0 {
		return fmt.Errorf("%w: no statuses", ErrInvalidQuery)
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, s)
		}
		if s.Terminal() {
			return fmt.Errorf("%w: terminal status %q", ErrInvalidQuery, s)
		}
	}
	return nil
}
