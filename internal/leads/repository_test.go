package leads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FindEligible(t *testing.T) {
	now := time.Date(2025, 11, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	store := NewMemoryStore()
	store.Put(Lead{ID: "due", Status: StatusNoAnswer, NextRetryAt: &past})
	store.Put(Lead{ID: "later", Status: StatusNoAnswer, NextRetryAt: &future})
	store.Put(Lead{ID: "no-gate", Status: StatusNoAnswer})
	store.Put(Lead{ID: "other", Status: StatusConfirmed, NextRetryAt: &past})
	store.Put(Lead{ID: "outreach", Status: StatusWhatsAppOutreach})

	due, err := store.FindEligible(context.Background(), EligibilityQuery{Statuses: RetryableStatuses, DueBefore: now})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	outreach, err := store.FindEligible(context.Background(), EligibilityQuery{Statuses: []Status{StatusWhatsAppOutreach}})
	require.NoError(t, err)
	require.Len(t, outreach, 1)

	limited, err := store.FindEligible(context.Background(), EligibilityQuery{Statuses: []Status{StatusNoAnswer}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStore_FindEligibleRejectsInvalidQuery(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Lead{ID: "done", Status: StatusConfirmed})
	ctx := context.Background()

	for name, q := range map[string]EligibilityQuery{
		"empty":    {},
		"unknown":  {Statuses: []Status{"bogus"}},
		"terminal": {Statuses: []Status{StatusNoAnswer, StatusConfirmed}},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := store.FindEligible(ctx, q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			assert.Nil(t, got)
		})
	}
}

func TestMemoryStore_TransitionIsConditional(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Lead{ID: "lead-1", Status: StatusNoAnswer})
	ctx := context.Background()

	ok, err := store.Transition(ctx, "lead-1", StatusNoAnswer, StatusCalling, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Transition(ctx, "lead-1", StatusNoAnswer, StatusCalling, nil)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	_, err = store.Transition(ctx, "lead-1", StatusCalling, StatusWhatsAppOutreachSent, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = store.Transition(ctx, "missing", StatusNoAnswer, StatusCalling, nil)
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestMemoryStore_ConcurrentClaimHasOneWinner(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Lead{ID: "lead-1", Status: StatusCallFailed})

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := store.Transition(context.Background(), "lead-1", StatusCallFailed, StatusCalling, nil)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStore_AttemptInvariants(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Lead{ID: "lead-1", Status: StatusNoAnswer})
	ctx := context.Background()
	started := time.Date(2025, 11, 16, 12, 0, 0, 0, time.UTC)

	latest, err := store.LatestAttempt(ctx, "lead-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := store.InsertAttempt(ctx, CallAttempt{LeadID: "lead-1", AttemptNo: 1, StartedAt: started, Outcome: OutcomeInitiated})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	inFlight, err := store.HasInFlightAttempt(ctx, "lead-1")
	require.NoError(t, err)
	assert.True(t, inFlight)

	_, err = store.InsertAttempt(ctx, CallAttempt{LeadID: "lead-1", AttemptNo: 2, StartedAt: started, Outcome: OutcomeInitiated})
	assert.ErrorIs(t, err, ErrAttemptConflict, "second in-flight attempt must be rejected")

	require.NoError(t, store.AttachCall(ctx, first.ID, "call-1"))
	require.NoError(t, store.FinishAttempt(ctx, first.ID, OutcomeNoAnswer, started.Add(time.Minute)))

	inFlight, err = store.HasInFlightAttempt(ctx, "lead-1")
	require.NoError(t, err)
	assert.False(t, inFlight)

	_, err = store.InsertAttempt(ctx, CallAttempt{LeadID: "lead-1", AttemptNo: 1, StartedAt: started, Outcome: OutcomeInitiated})
	assert.ErrorIs(t, err, ErrAttemptConflict, "attempt numbers are unique per lead")

	_, err = store.InsertAttempt(ctx, CallAttempt{LeadID: "lead-1", AttemptNo: 2, StartedAt: started.Add(time.Hour), Outcome: OutcomeInitiated})
	require.NoError(t, err)

	latest, err = store.LatestAttempt(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.AttemptNo)

	attempts := store.Attempts("lead-1")
	require.Len(t, attempts, 2)
	assert.Equal(t, "call-1", attempts[0].CallID)
	assert.Equal(t, OutcomeNoAnswer, attempts[0].Outcome)
}

func TestMemoryStore_AssignAgent(t *testing.T) {
	store := NewMemoryStore()
	store.Put(Lead{ID: "lead-1"})

	require.NoError(t, store.AssignAgent(context.Background(), "lead-1", "agent-7"))
	lead, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-7", lead.AgentID)

	assert.ErrorIs(t, store.AssignAgent(context.Background(), "missing", "agent-7"), ErrLeadNotFound)
}
