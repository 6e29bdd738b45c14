package leads

// Status is a lead lifecycle state.
type Status string

const (
	StatusNew      Status = "new"
	StatusCalling  Status = "calling"
	StatusNoAnswer Status = "no_answer"
	// StatusReschedule is set when the contact asked to be called back later.
	StatusReschedule Status = "reschedule"
	StatusCallFailed Status = "call_failed"
	// StatusRetryFailed marks a transient error while placing a retry call.
	StatusRetryFailed Status = "retry_failed"
	// StatusWhatsAppOutreach hands an exhausted lead over to chat outreach.
	StatusWhatsAppOutreach      Status = "whatsapp_outreach"
	StatusWhatsAppOutreachSent  Status = "whatsapp_outreach_sent"
	StatusAwaitingChannelChoice Status = "awaiting_channel_preference"
	// StatusAvailableTime is set by the conversation engine when an earlier
	// slot callback was promised.
	StatusAvailableTime  Status = "available_time"
	StatusScarcitySent   Status = "whatsapp_scarity_sent"
	StatusNoEarlierSlots Status = "no_earlier_slots"
	StatusConfirmed      Status = "confirmed"
	StatusNotInterested  Status = "not_interested"
)

// RetryableStatuses are the states the call retry task picks up.
var RetryableStatuses = []Status{StatusNoAnswer, StatusReschedule, StatusCallFailed, StatusRetryFailed}

var transitions = map[Status][]Status{
	StatusNew:                   {StatusCalling, StatusNoAnswer, StatusCallFailed, StatusNotInterested},
	StatusNoAnswer:              {StatusCalling, StatusWhatsAppOutreach, StatusRetryFailed, StatusNotInterested},
	StatusReschedule:            {StatusCalling, StatusWhatsAppOutreach, StatusRetryFailed, StatusNotInterested},
	StatusCallFailed:            {StatusCalling, StatusWhatsAppOutreach, StatusRetryFailed, StatusNotInterested},
	StatusRetryFailed:           {StatusCalling, StatusWhatsAppOutreach, StatusRetryFailed, StatusNotInterested},
	StatusCalling:               {StatusNoAnswer, StatusReschedule, StatusCallFailed, StatusRetryFailed, StatusAvailableTime, StatusConfirmed, StatusNotInterested},
	StatusWhatsAppOutreach:      {StatusWhatsAppOutreachSent, StatusAwaitingChannelChoice},
	StatusWhatsAppOutreachSent:  {StatusAvailableTime, StatusConfirmed, StatusNotInterested},
	StatusAwaitingChannelChoice: {StatusWhatsAppOutreach, StatusAvailableTime, StatusConfirmed, StatusNotInterested},
	StatusAvailableTime:         {StatusScarcitySent, StatusNoEarlierSlots, StatusConfirmed, StatusNotInterested},
	StatusScarcitySent:          {StatusAvailableTime, StatusConfirmed, StatusNotInterested},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if _, ok := transitions[s]; ok {
		return true
	}
	return s.Terminal()
}

// Terminal statuses are never picked up by a scheduler again.
func (s Status) Terminal() bool {
	switch s {
	case StatusNoEarlierSlots, StatusConfirmed, StatusNotInterested:
		return true
	}
	return false
}

// Retryable reports whether the call retry task owns the status.
func (s Status) Retryable() bool {
	for _, r := range RetryableStatuses {
		if s == r {
			return true
		}
	}
	return false
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusStrings converts a status set for SQL array parameters.
func StatusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
