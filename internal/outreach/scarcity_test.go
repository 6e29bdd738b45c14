package outreach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperK55/aluri-back-sub001/internal/availability"
	"github.com/SuperK55/aluri-back-sub001/internal/leads"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging"
)

// Wednesday 2025-11-12; the lookback for 2025-11-20 covers 11-13 .. 11-19.
var scarcityNow = time.Date(2025, 11, 12, 12, 0, 0, 0, time.UTC)

func hoursOn(days ...time.Weekday) availability.WorkingHours {
	wh := availability.WorkingHours{}
	for _, d := range days {
		wh[d] = availability.DaySchedule{Enabled: true, Windows: []availability.TimeWindow{{Start: "09:00", End: "11:00"}}}
	}
	return wh
}

func scarcityLead(id, suggested string) leads.Lead {
	due := scarcityNow.Add(-time.Minute)
	return leads.Lead{
		ID:          id,
		OwnerID:     testOwner,
		ResourceID:  "res-1",
		AgentID:     "agent-1",
		FirstName:   "Ana",
		Phone:       testPhone,
		Status:      leads.StatusAvailableTime,
		NextRetryAt: &due,
		Variables:   leads.AgentVariables{leads.VarSuggestedDate: suggested},
	}
}

func TestProcessScarcity_OffersTwoEarlierSlots(t *testing.T) {
	f := newFixture(t, scarcityNow, hoursOn(time.Thursday))
	f.leads.Put(scarcityLead("lead-1", "2025-11-20"))

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.templates.sent, 1)
	msg := f.templates.sent[0]
	assert.Equal(t, "earlier_slots_available", msg.Template)
	assert.Equal(t, []string{
		"Ana",
		"Thu, Nov 13 at 9:00 AM",
		"Thu, Nov 13 at 10:00 AM",
		"Thursday, November 20",
	}, msg.Params)

	records := f.records.All()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, ChannelWhatsApp, rec.Channel)
	assert.Equal(t, "2025-11-20", rec.PromisedDate)
	assert.Equal(t, "agent-1", rec.AgentID)
	require.Len(t, rec.OfferedSlots, 2)
	assert.True(t, rec.OfferedSlots[0].Start.Equal(time.Date(2025, 11, 13, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Thu, Nov 13 at 10:00 AM", rec.OfferedSlots[1].Label)

	assert.Equal(t, leads.StatusScarcitySent, f.status(t, "lead-1"))
}

func TestProcessScarcity_SingleSlotIsTerminal(t *testing.T) {
	// Only Tuesday 2025-11-18 09:00-10:00 is open before the promised date.
	hours := availability.WorkingHours{
		time.Tuesday: {Enabled: true, Windows: []availability.TimeWindow{{Start: "09:00", End: "10:00"}}},
	}
	f := newFixture(t, scarcityNow, hours)
	f.leads.Put(scarcityLead("lead-1", "2025-11-20"))

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, leads.StatusNoEarlierSlots, f.status(t, "lead-1"))
	assert.Empty(t, f.templates.sent)
	assert.Empty(t, f.texts.sent)
	assert.Empty(t, f.records.All())

	// Terminal: the next tick does not pick it up again.
	n, err = f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessScarcity_NotDueIsIgnored(t *testing.T) {
	f := newFixture(t, scarcityNow, hoursOn(time.Thursday))
	lead := scarcityLead("lead-1", "2025-11-20")
	later := scarcityNow.Add(time.Hour)
	lead.NextRetryAt = &later
	f.leads.Put(lead)

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, leads.StatusAvailableTime, f.status(t, "lead-1"))
}

func TestProcessScarcity_FallsBackToSMS(t *testing.T) {
	f := newFixture(t, scarcityNow, hoursOn(time.Thursday, time.Friday))
	f.templates.err = messaging.ErrChannelNotConnected
	f.leads.Put(scarcityLead("lead-1", "11/20/2025"))

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, f.texts.sent, 1)
	body := f.texts.sent[0].Body
	assert.Contains(t, body, "Thu, Nov 13 at 9:00 AM")
	assert.Contains(t, body, "Thu, Nov 13 at 10:00 AM")
	assert.Contains(t, body, "Thursday, November 20")

	records := f.records.All()
	require.Len(t, records, 1)
	assert.Equal(t, ChannelSMS, records[0].Channel)
	assert.Equal(t, "sms-1", records[0].LastMessageID)
	assert.Equal(t, leads.StatusScarcitySent, f.status(t, "lead-1"))
}

func TestProcessScarcity_MissingSuggestedDateSkipped(t *testing.T) {
	f := newFixture(t, scarcityNow, hoursOn(time.Thursday))
	f.leads.Put(scarcityLead("lead-1", ""))
	f.leads.Put(scarcityLead("lead-2", "someday"))

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, leads.StatusAvailableTime, f.status(t, "lead-1"))
	assert.Equal(t, leads.StatusAvailableTime, f.status(t, "lead-2"))
	assert.Empty(t, f.templates.sent)
}

func TestProcessScarcity_UnknownResourceAbortsLeadOnly(t *testing.T) {
	f := newFixture(t, scarcityNow, hoursOn(time.Thursday))
	gone := scarcityLead("lead-gone", "2025-11-20")
	gone.ResourceID = "res-deleted"
	f.leads.Put(gone)
	f.leads.Put(scarcityLead("lead-ok", "2025-11-20"))

	n, err := f.worker.ProcessScarcity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, leads.StatusAvailableTime, f.status(t, "lead-gone"))
	assert.Equal(t, leads.StatusScarcitySent, f.status(t, "lead-ok"))
}
