package leads

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusNoAnswer, StatusCalling, true},
		{StatusRetryFailed, StatusCalling, true},
		{StatusCallFailed, StatusWhatsAppOutreach, true},
		{StatusCalling, StatusRetryFailed, true},
		{StatusWhatsAppOutreach, StatusWhatsAppOutreachSent, true},
		{StatusWhatsAppOutreach, StatusAwaitingChannelChoice, true},
		{StatusAvailableTime, StatusScarcitySent, true},
		{StatusAvailableTime, StatusNoEarlierSlots, true},
		{StatusCalling, StatusWhatsAppOutreachSent, false},
		{StatusNoEarlierSlots, StatusAvailableTime, false},
		{StatusConfirmed, StatusCalling, false},
		{StatusWhatsAppOutreach, StatusCalling, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusClassification(t *testing.T) {
	for _, s := range RetryableStatuses {
		assert.True(t, s.Retryable(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, StatusCalling.Retryable())
	assert.True(t, StatusNoEarlierSlots.Terminal())
	assert.True(t, StatusConfirmed.Valid())
	assert.False(t, Status("bogus").Valid())
	assert.Equal(t, "whatsapp_scarity_sent", string(StatusScarcitySent))
}

func TestLeadHelpers(t *testing.T) {
	now := time.Date(2025, 11, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, Lead{NextRetryAt: &past}.Due(now))
	assert.True(t, Lead{NextRetryAt: &now}.Due(now))
	assert.False(t, Lead{NextRetryAt: &future}.Due(now))
	assert.False(t, Lead{}.Due(now))

	assert.Equal(t, 5, Lead{MaxAttempts: 5}.AttemptCap(3))
	assert.Equal(t, 3, Lead{}.AttemptCap(3))
}

func TestAgentVariablesUnmarshalIsLenient(t *testing.T) {
	var vars AgentVariables
	require.NoError(t, json.Unmarshal([]byte(`{"suggested_date":"11/20/2025","age":42,"vip":true,"note":null}`), &vars))

	date, ok := vars.Get(VarSuggestedDate)
	assert.True(t, ok)
	assert.Equal(t, "11/20/2025", date)
	assert.Equal(t, "42", vars["age"])
	assert.Equal(t, "true", vars["vip"])
	_, ok = vars.Get("note")
	assert.False(t, ok)

	var empty AgentVariables
	_, ok = empty.Get(VarSuggestedDate)
	assert.False(t, ok)
}
