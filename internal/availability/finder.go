package availability

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	nextSlotHorizonDays = 30
	slotsHorizonDays    = 60
	lookbackWindowDays  = 14
	fallbackDaysOut     = 14
	fallbackHour        = 10
)

// ConflictIndex is a read-only view of booked appointments. Implementations
// return scheduled appointments overlapping [rangeStart, rangeEnd).
type ConflictIndex interface {
	ListScheduled(ctx context.Context, resourceID string, rangeStart, rangeEnd time.Time) ([]Appointment, error)
}

// Finder enumerates bookable slots. It holds no mutable state; repeated calls
// with unchanged inputs return identical results.
type Finder struct {
	appointments ConflictIndex
	now          func() time.Time
}

// NewFinder creates a slot finder backed by the given appointment index.
func NewFinder(appointments ConflictIndex) *Finder {
	if appointments == nil {
		panic("availability: conflict index required")
	}
	return &Finder{appointments: appointments, now: time.Now}
}

// WithClock overrides the clock used by queries that are relative to "now".
func (f *Finder) WithClock(now func() time.Time) *Finder {
	if now != nil {
		f.now = now
	}
	return f
}

// search bounds one slot query.
type search struct {
	after  time.Time // slots must start strictly after this instant
	before time.Time // zero, or slots must start strictly before this instant
	days   int
	limit  int // zero means unlimited
}

// NextSlot returns the earliest slot after from, searching day by day from
// tomorrow (resource-local) across a 30-day horizon. When nothing is open it
// returns a fallback slot 14 days out at a fixed hour with Fallback set.
func (f *Finder) NextSlot(ctx context.Context, s Schedule, from time.Time) (Slot, error) {
	loc := s.Location()
	slots, err := f.run(ctx, s, tomorrow(from, loc), search{after: from, days: nextSlotHorizonDays, limit: 1})
	if err != nil {
		return Slot{}, err
	}
	if len(slots) > 0 {
		return slots[0], nil
	}
	return fallbackSlot(s, from, loc), nil
}

// Slots returns up to max slots after from in chronological order across a
// 60-day horizon starting tomorrow.
func (f *Finder) Slots(ctx context.Context, s Schedule, from time.Time, max int) ([]Slot, error) {
	if max <= 0 {
		return []Slot{}, nil
	}
	loc := s.Location()
	return f.run(ctx, s, tomorrow(from, loc), search{after: from, days: slotsHorizonDays, limit: max})
}

// SlotsOnDate returns every open, non-conflicting, future slot on one date.
func (f *Finder) SlotsOnDate(ctx context.Context, s Schedule, date string) ([]Slot, error) {
	loc := s.Location()
	day, err := ParseDateIn(date, loc)
	if err != nil {
		return nil, err
	}
	return f.run(ctx, s, day, search{after: f.now(), days: 1})
}

// SlotsBefore returns up to max of the earliest slots starting strictly before
// local midnight of cutoffDate, looking at most 14 days ahead from tomorrow.
func (f *Finder) SlotsBefore(ctx context.Context, s Schedule, cutoffDate string, max int) ([]Slot, error) {
	if max <= 0 {
		return []Slot{}, nil
	}
	loc := s.Location()
	cutoff, err := ParseDateIn(cutoffDate, loc)
	if err != nil {
		return nil, err
	}
	now := f.now()
	return f.run(ctx, s, tomorrow(now, loc), search{after: now, before: cutoff, days: lookbackWindowDays, limit: max})
}

func (f *Finder) run(ctx context.Context, s Schedule, first time.Time, q search) ([]Slot, error) {
	out := []Slot{}
	if s.SlotDuration <= 0 {
		return out, nil
	}
	loc := first.Location()
	p := newPlanner(s)
	for i := 0; i < q.days; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, loc)
		if !q.before.IsZero() && !day.Before(q.before) {
			break
		}
		remaining := 0
		if q.limit > 0 {
			remaining = q.limit - len(out)
		}
		daySlots, err := f.slotsForDay(ctx, s, p, day, q, remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, daySlots...)
		if q.limit > 0 && len(out) >= q.limit {
			return out[:q.limit], nil
		}
	}
	return out, nil
}

func (f *Finder) slotsForDay(ctx context.Context, s Schedule, p planner, day time.Time, q search, limit int) ([]Slot, error) {
	plan := p.plan(day)
	if plan.blackout || len(plan.windows) == 0 {
		return nil, nil
	}
	candidates := candidateStarts(day, plan.windows, s.SlotDuration, q)
	if len(candidates) == 0 {
		return nil, nil
	}

	dayEnd := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
	booked, err := f.appointments.ListScheduled(ctx, s.ResourceID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("availability: list appointments for %s: %w", day.Format(DateLayout), err)
	}

	var out []Slot
	for _, start := range candidates {
		end := start.Add(s.SlotDuration)
		if conflicts(booked, start, end) {
			continue
		}
		out = append(out, Slot{Start: start, End: end})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// candidateStarts steps each window by the slot duration, keeping only
// instants whose whole slot fits the window and that satisfy the search bounds.
func candidateStarts(day time.Time, windows []TimeWindow, step time.Duration, q search) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, w := range windows {
		sh, sm, ok := parseClock(w.Start)
		if !ok {
			continue
		}
		eh, em, ok := parseClock(w.End)
		if !ok {
			continue
		}
		windowStart := time.Date(day.Year(), day.Month(), day.Day(), sh, sm, 0, 0, day.Location())
		windowEnd := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, day.Location())
		for t := windowStart; !t.Add(step).After(windowEnd); t = t.Add(step) {
			if !t.After(q.after) {
				continue
			}
			if !q.before.IsZero() && !t.Before(q.before) {
				continue
			}
			key := t.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func conflicts(booked []Appointment, start, end time.Time) bool {
	for _, appt := range booked {
		if appt.blocks(start, end) {
			return true
		}
	}
	return false
}

// tomorrow returns local midnight of the day after t in loc.
func tomorrow(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

func fallbackSlot(s Schedule, from time.Time, loc *time.Location) Slot {
	local := from.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+fallbackDaysOut, fallbackHour, 0, 0, 0, loc)
	return Slot{Start: start, End: start.Add(s.SlotDuration), Fallback: true}
}
