// Package availability turns a resource's weekly working hours, date overrides
// and booked appointments into bookable slots.
package availability

import (
	"strings"
	"time"
)

// DateLayout is the canonical representation of a calendar date.
const DateLayout = "2006-01-02"

// StatusScheduled is the only appointment status that blocks a slot.
const StatusScheduled = "scheduled"

// TimeWindow is a local wall-clock range in "15:04" form. End is exclusive.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule is one weekday entry of a working hours template.
type DaySchedule struct {
	Enabled bool         `json:"enabled"`
	Windows []TimeWindow `json:"slots"`
}

// open reports whether the day can produce slots at all.
func (d DaySchedule) open() bool {
	return d.Enabled && len(d.Windows) > 0
}

// WorkingHours is the recurring weekly template of a resource.
type WorkingHours map[time.Weekday]DaySchedule

// OverrideKind distinguishes blackout dates from replacement windows.
type OverrideKind string

const (
	OverrideUnavailable OverrideKind = "unavailable"
	OverrideAvailable   OverrideKind = "available"
)

// DateOverride supersedes the weekly template for a single date.
type DateOverride struct {
	Date    string       `json:"date"`
	Kind    OverrideKind `json:"type"`
	Windows []TimeWindow `json:"slots,omitempty"`
}

// Schedule is everything the slot search needs to know about a resource.
type Schedule struct {
	ResourceID   string         `json:"resource_id"`
	Timezone     string         `json:"timezone"`
	SlotDuration time.Duration  `json:"slot_duration"`
	WorkingHours WorkingHours   `json:"working_hours"`
	Overrides    []DateOverride `json:"date_overrides"`
}

// Location resolves the schedule timezone, falling back to UTC when unset or unknown.
func (s Schedule) Location() *time.Location {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// dayPlan is the effective view of one date after overrides are applied.
type dayPlan struct {
	blackout bool
	windows  []TimeWindow
}

// planner indexes overrides by canonical date for repeated per-day lookups.
type planner struct {
	hours     WorkingHours
	overrides map[string][]DateOverride
}

func newPlanner(s Schedule) planner {
	idx := make(map[string][]DateOverride, len(s.Overrides))
	for _, o := range s.Overrides {
		key, ok := NormalizeDate(o.Date)
		if !ok {
			continue
		}
		idx[key] = append(idx[key], o)
	}
	return planner{hours: s.WorkingHours, overrides: idx}
}

// plan returns the effective windows for a local date. An unavailable override
// always wins; an available override only replaces the template when it
// carries windows.
func (p planner) plan(day time.Time) dayPlan {
	key := day.Format(DateLayout)
	var replacement []TimeWindow
	for _, o := range p.overrides[key] {
		switch o.Kind {
		case OverrideUnavailable:
			return dayPlan{blackout: true}
		case OverrideAvailable:
			if len(o.Windows) > 0 && replacement == nil {
				replacement = o.Windows
			}
		}
	}
	if replacement != nil {
		return dayPlan{windows: replacement}
	}
	entry, ok := p.hours[day.Weekday()]
	if !ok || !entry.open() {
		return dayPlan{}
	}
	return dayPlan{windows: entry.Windows}
}

// Appointment is a booked interval [Start, End) against a resource.
type Appointment struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
}

// blocks reports whether the appointment overlaps [start, end). Touching
// intervals do not overlap.
func (a Appointment) blocks(start, end time.Time) bool {
	if a.Status != "" && a.Status != StatusScheduled {
		return false
	}
	return start.Before(a.End) && end.After(a.Start)
}

// Slot is a candidate bookable interval. Fallback marks the degraded default
// returned when no real availability exists; it must never be offered as a
// real opening.
type Slot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Fallback bool      `json:"fallback,omitempty"`
}

// ResourceKind describes what the bookable entity is.
type ResourceKind string

const (
	KindDoctor    ResourceKind = "doctor"
	KindTreatment ResourceKind = "treatment"
	KindOwner     ResourceKind = "owner"
)

// Resource is a bookable entity owned by a single business account.
type Resource struct {
	ID       string       `json:"id"`
	OwnerID  string       `json:"owner_id"`
	Name     string       `json:"name"`
	Kind     ResourceKind `json:"kind"`
	Category string       `json:"category"`
	Schedule Schedule     `json:"schedule"`
}
