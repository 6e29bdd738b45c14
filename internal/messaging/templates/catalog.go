package templates

// Placeholder names shared by the catalog.
const (
	FirstName    = "first_name"
	AgentName    = "agent_name"
	BusinessName = "business_name"
	FirstSlot    = "first_slot"
	SecondSlot   = "second_slot"
	PromisedDate = "promised_date"
)

var (
	// Welcome opens chat outreach after call retries are exhausted.
	Welcome = MustNew("welcome_outreach",
		"Hi {{.first_name}}, this is {{.agent_name}} from {{.business_name}}. We tried to reach you by phone. Is this a good place to continue?",
		FirstName, AgentName, BusinessName)

	// EarlierSlots offers two openings before the date promised on a call.
	EarlierSlots = MustNew("earlier_slots_available",
		"Hi {{.first_name}}, good news: we found earlier times than {{.promised_date}}. Option 1: {{.first_slot}}. Option 2: {{.second_slot}}. Reply 1 or 2 to book.",
		FirstName, FirstSlot, SecondSlot, PromisedDate)

	// ChannelPreference is the plain-text fallback when chat is unavailable.
	ChannelPreference = MustNew("channel_preference",
		"Hi {{.first_name}}, this is {{.business_name}}. We could not reach you by phone. Reply with the best way and time to contact you.",
		FirstName, BusinessName)
)

// WelcomeParams fills Welcome.
type WelcomeParams struct {
	FirstName    string
	AgentName    string
	BusinessName string
}

func (p WelcomeParams) Values() Values {
	return Values{FirstName: p.FirstName, AgentName: p.AgentName, BusinessName: p.BusinessName}
}

// EarlierSlotsParams fills EarlierSlots.
type EarlierSlotsParams struct {
	FirstName    string
	FirstSlot    string
	SecondSlot   string
	PromisedDate string
}

func (p EarlierSlotsParams) Values() Values {
	return Values{FirstName: p.FirstName, FirstSlot: p.FirstSlot, SecondSlot: p.SecondSlot, PromisedDate: p.PromisedDate}
}

// ChannelPreferenceParams fills ChannelPreference.
type ChannelPreferenceParams struct {
	FirstName    string
	BusinessName string
}

func (p ChannelPreferenceParams) Values() Values {
	return Values{FirstName: p.FirstName, BusinessName: p.BusinessName}
}
