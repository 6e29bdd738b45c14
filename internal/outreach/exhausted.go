package outreach

import (
	"context"
	"errors"
	"fmt"

	"github.com/SuperK55/aluri-back-sub001/internal/business"
	"github.com/SuperK55/aluri-back-sub001/internal/leads"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging/templates"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/SuperK55/aluri-back-sub001/pkg/phone"
)

// ProcessExhausted opens chat outreach for leads whose call retries ran out.
// It returns the number of leads handled.
func (w *Worker) ProcessExhausted(ctx context.Context) (int, error) {
	q := leads.EligibilityQuery{
		Statuses: []leads.Status{leads.StatusWhatsAppOutreach},
		Limit:    w.cfg.batchSize,
	}
	return w.runBatch(ctx, TaskExhausted, q, w.welcome)
}

func (w *Worker) welcome(ctx context.Context, lead leads.Lead, log *logging.Logger) (string, error) {
	biz, err := w.business.Get(ctx, lead.OwnerID)
	if err != nil {
		return "", fmt.Errorf("load business: %w", err)
	}
	to, err := phone.Normalize(lead.Phone, w.cfg.region)
	if err != nil {
		return "", fmt.Errorf("lead phone %q: %w", lead.Phone, err)
	}
	if !biz.MessagingAvailable() {
		log.Info("outreach: messaging not available, asking channel preference")
		return w.askChannelPreference(ctx, lead, biz, to, log)
	}

	if lead.ResourceID == "" {
		return "", errNoResource
	}
	res, err := w.availability.Resource(ctx, lead.ResourceID)
	if err != nil {
		return "", fmt.Errorf("load resource: %w", err)
	}
	agent, err := w.agents.Ensure(ctx, lead.ID, lead.OwnerID, lead.AgentID, res.Category)
	if err != nil {
		return "", fmt.Errorf("resolve agent: %w", err)
	}

	params, err := templates.Welcome.Params(templates.WelcomeParams{
		FirstName:    lead.FirstName,
		AgentName:    agent.Name,
		BusinessName: biz.DisplayName(),
	}.Values())
	if err != nil {
		return "", err
	}
	messageID, err := w.templates.SendTemplate(ctx, messaging.TemplateMessage{
		OwnerID:  lead.OwnerID,
		To:       to,
		Template: templates.Welcome.Name(),
		Language: biz.TemplateLanguage(w.cfg.language),
		Params:   params,
	})
	if errors.Is(err, messaging.ErrChannelNotConnected) {
		log.Warn("outreach: channel not connected, asking channel preference")
		return w.askChannelPreference(ctx, lead, biz, to, log)
	}
	if err != nil {
		return "", fmt.Errorf("send welcome: %w", err)
	}

	rec, err := w.openRecord(ctx, lead, to)
	if err != nil {
		return "", err
	}
	rec.AgentID = agent.ID
	rec.Channel = ChannelWhatsApp
	rec.Status = RecordPendingResponse
	rec.LastMessageID = messageID
	if _, err := w.records.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("save outreach record: %w", err)
	}
	return w.advance(ctx, lead, leads.StatusWhatsAppOutreachSent, OutcomeWelcomeSent, log)
}

func (w *Worker) askChannelPreference(ctx context.Context, lead leads.Lead, biz *business.Config, to string, log *logging.Logger) (string, error) {
	body, err := templates.ChannelPreference.Render(templates.ChannelPreferenceParams{
		FirstName:    lead.FirstName,
		BusinessName: biz.DisplayName(),
	}.Values())
	if err != nil {
		return "", err
	}
	if _, err := w.sendText(ctx, biz, to, body); err != nil {
		return "", err
	}
	return w.advance(ctx, lead, leads.StatusAwaitingChannelChoice, OutcomeChannelPreference, log)
}
