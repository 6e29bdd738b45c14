package outreach

import (
	"time"

	"github.com/SuperK55/aluri-back-sub001/internal/availability"
)

const (
	slotLayout     = "Mon, Jan 2 at 3:04 PM"
	promisedLayout = "Monday, January 2"
)

// FormatSlot renders a slot start for a message, in the slot's own zone.
func FormatSlot(slot availability.Slot) string {
	return slot.Start.Format(slotLayout)
}

// FormatPromisedDate renders a canonical YYYY-MM-DD date for a message.
// Unparseable input is returned unchanged.
func FormatPromisedDate(date string) string {
	t, err := time.Parse(availability.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(promisedLayout)
}

func offeredSlots(slots []availability.Slot) []OfferedSlot {
	out := make([]OfferedSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, OfferedSlot{Start: s.Start.UTC(), End: s.End.UTC(), Label: FormatSlot(s)})
	}
	return out
}

func realSlots(slots []availability.Slot) []availability.Slot {
	out := slots[:0:0]
	for _, s := range slots {
		if !s.Fallback {
			out = append(out, s)
		}
	}
	return out
}
