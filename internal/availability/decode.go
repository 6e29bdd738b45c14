package availability

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// NormalizeDate converts a stored date into canonical YYYY-MM-DD form.
// Timestamps keep the calendar date they were written with; no timezone
// conversion is applied.
func NormalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(DateLayout), true
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format(DateLayout), true
	}
	if len(value) > len(DateLayout) {
		if t, err := time.Parse(DateLayout, value[:len(DateLayout)]); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// ParseDateIn returns local midnight of a date string in loc.
func ParseDateIn(value string, loc *time.Location) (time.Time, error) {
	key, ok := NormalizeDate(value)
	if !ok {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekday(key string) (time.Weekday, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if d, ok := weekdayNames[key]; ok {
		return d, true
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), true
	}
	return 0, false
}

// MarshalJSON writes weekday names as keys.
func (w WorkingHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]DaySchedule, len(w))
	for day, entry := range w {
		out[strings.ToLower(day.String())] = entry
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a weekly template. Unknown keys are ignored and
// malformed days decode as closed; it never fails.
func (w *WorkingHours) UnmarshalJSON(data []byte) error {
	*w = ParseWorkingHours(data)
	return nil
}

// ParseWorkingHours leniently decodes a weekly template.
func ParseWorkingHours(data []byte) WorkingHours {
	hours := WorkingHours{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return hours
	}
	for key, value := range raw {
		day, ok := parseWeekday(key)
		if !ok {
			continue
		}
		hours[day] = parseDaySchedule(value)
	}
	return hours
}

// UnmarshalJSON decodes a day leniently; see parseDaySchedule.
func (d *DaySchedule) UnmarshalJSON(data []byte) error {
	*d = parseDaySchedule(data)
	return nil
}

// parseDaySchedule treats a non-boolean enabled flag or unreadable windows as
// a closed day.
func parseDaySchedule(data []byte) DaySchedule {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return DaySchedule{}
	}
	var enabled bool
	if v, ok := raw["enabled"]; ok {
		if err := json.Unmarshal(v, &enabled); err != nil {
			return DaySchedule{}
		}
	}
	windows := parseWindows(raw, "slots", "windows", "time_slots")
	return DaySchedule{Enabled: enabled, Windows: windows}
}

func parseWindows(raw map[string]json.RawMessage, keys ...string) []TimeWindow {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var windows []TimeWindow
		if err := json.Unmarshal(v, &windows); err != nil {
			return nil
		}
		valid := windows[:0]
		for _, tw := range windows {
			if strings.TrimSpace(tw.Start) != "" && strings.TrimSpace(tw.End) != "" {
				valid = append(valid, tw)
			}
		}
		if len(valid) == 0 {
			return nil
		}
		return valid
	}
	return nil
}

// UnmarshalJSON normalizes the override date and accepts "status" as an alias
// for "type".
func (o *DateOverride) UnmarshalJSON(data []byte) error {
	parsed, _ := parseOverride(data)
	*o = parsed
	return nil
}

func parseOverride(data []byte) (DateOverride, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return DateOverride{}, false
	}
	var dateStr string
	if v, ok := raw["date"]; ok {
		_ = json.Unmarshal(v, &dateStr)
	}
	date, ok := NormalizeDate(dateStr)
	if !ok {
		return DateOverride{}, false
	}
	var kind string
	for _, key := range []string{"type", "status", "kind"} {
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, &kind)
			break
		}
	}
	windows := parseWindows(raw, "slots", "windows", "time_slots")

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "unavailable", "blocked", "closed":
		return DateOverride{Date: date, Kind: OverrideUnavailable}, true
	case "available", "open":
		return DateOverride{Date: date, Kind: OverrideAvailable, Windows: windows}, true
	case "":
		if len(windows) > 0 {
			return DateOverride{Date: date, Kind: OverrideAvailable, Windows: windows}, true
		}
	}
	return DateOverride{}, false
}

// ParseOverrides decodes a JSON array of overrides, dropping entries whose
// date or kind cannot be understood.
func ParseOverrides(data []byte) []DateOverride {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]DateOverride, 0, len(raw))
	for _, item := range raw {
		if o, ok := parseOverride(item); ok {
			out = append(out, o)
		}
	}
	return out
}

// parseClock converts "15:04" into hours and minutes. "24:00" is accepted
// as the end of the day.
func parseClock(value string) (int, int, bool) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return 24, 0, true
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}
