package outreach

import (
	"context"
	"errors"
	"fmt"

	"github.com/SuperK55/aluri-back-sub001/internal/availability"
	"github.com/SuperK55/aluri-back-sub001/internal/leads"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging"
	"github.com/SuperK55/aluri-back-sub001/internal/messaging/templates"
	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
	"github.com/SuperK55/aluri-back-sub001/pkg/phone"
)

// ProcessScarcity offers earlier openings to leads that were promised a
// callback about availability before their suggested date.
func (w *Worker) ProcessScarcity(ctx context.Context) (int, error) {
	q := leads.EligibilityQuery{
		Statuses:  []leads.Status{leads.StatusAvailableTime},
		DueBefore: w.cfg.now(),
		Limit:     w.cfg.batchSize,
	}
	return w.runBatch(ctx, TaskScarcity, q, w.offerEarlierSlots)
}

func (w *Worker) offerEarlierSlots(ctx context.Context, lead leads.Lead, log *logging.Logger) (string, error) {
	raw, _ := lead.Variables.Get(leads.VarSuggestedDate)
	promised, ok := availability.NormalizeDate(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", errNoSuggestedDate, raw)
	}
	if lead.ResourceID == "" {
		return "", errNoResource
	}

	found, err := w.availability.SlotsBefore(ctx, lead.ResourceID, promised, earlierSlotsWanted)
	if err != nil {
		return "", fmt.Errorf("slots before %s: %w", promised, err)
	}
	slots := realSlots(found)
	if len(slots) < earlierSlotsWanted {
		log.Info("outreach: no earlier slots", "suggested_date", promised, "found", len(slots))
		return w.advance(ctx, lead, leads.StatusNoEarlierSlots, OutcomeNoEarlierSlots, log)
	}
	slots = slots[:earlierSlotsWanted]

	biz, err := w.business.Get(ctx, lead.OwnerID)
	if err != nil {
		return "", fmt.Errorf("load business: %w", err)
	}
	to, err := phone.Normalize(lead.Phone, w.cfg.region)
	if err != nil {
		return "", fmt.Errorf("lead phone %q: %w", lead.Phone, err)
	}

	values := templates.EarlierSlotsParams{
		FirstName:    lead.FirstName,
		FirstSlot:    FormatSlot(slots[0]),
		SecondSlot:   FormatSlot(slots[1]),
		PromisedDate: FormatPromisedDate(promised),
	}.Values()

	channel := ChannelWhatsApp
	var messageID string
	if biz.MessagingAvailable() {
		params, err := templates.EarlierSlots.Params(values)
		if err != nil {
			return "", err
		}
		messageID, err = w.templates.SendTemplate(ctx, messaging.TemplateMessage{
			OwnerID:  lead.OwnerID,
			To:       to,
			Template: templates.EarlierSlots.Name(),
			Language: biz.TemplateLanguage(w.cfg.language),
			Params:   params,
		})
		if err != nil && !errors.Is(err, messaging.ErrChannelNotConnected) {
			return "", fmt.Errorf("send earlier slots: %w", err)
		}
		if err != nil {
			log.Warn("outreach: channel not connected, falling back to sms")
			channel = ChannelSMS
		}
	} else {
		channel = ChannelSMS
	}
	if channel == ChannelSMS {
		body, err := templates.EarlierSlots.Render(values)
		if err != nil {
			return "", err
		}
		if messageID, err = w.sendText(ctx, biz, to, body); err != nil {
			return "", err
		}
	}

	rec, err := w.openRecord(ctx, lead, to)
	if err != nil {
		return "", err
	}
	if lead.AgentID != "" {
		rec.AgentID = lead.AgentID
	}
	rec.Channel = channel
	rec.Status = RecordPendingResponse
	rec.OfferedSlots = offeredSlots(slots)
	rec.PromisedDate = promised
	rec.LastMessageID = messageID
	if _, err := w.records.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("save outreach record: %w", err)
	}
	return w.advance(ctx, lead, leads.StatusScarcitySent, OutcomeEarlierSlotsSent, log)
}
