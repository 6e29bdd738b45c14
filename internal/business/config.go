// Package business holds per-account configuration the schedulers consult:
// display name, timezone, calling hours and messaging credentials.
package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayHours represents the calling hours for a single day.
// Nil means no calls are placed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Messaging describes the account's chat channel credential.
type Messaging struct {
	// Connected is true when the account has an active WhatsApp credential.
	Connected bool   `json:"connected"`
	PhoneID   string `json:"phone_id,omitempty"`
	// Language overrides the default template language tag.
	Language string `json:"language,omitempty"`
}

// Config holds business-account configuration.
type Config struct {
	OwnerID       string        `json:"owner_id"`
	Name          string        `json:"name"`
	Timezone      string        `json:"timezone"` // e.g., "America/Sao_Paulo"
	BusinessHours BusinessHours `json:"business_hours"`
	Messaging     Messaging     `json:"messaging"`
	// SMSFromNumber is the sender used for plain-text fallback messages.
	SMSFromNumber string `json:"sms_from_number,omitempty"`
}

// DefaultConfig returns the configuration used until an account saves its own.
func DefaultConfig(ownerID string) *Config {
	return &Config{
		OwnerID:  ownerID,
		Name:     "Clinic",
		Timezone: "America/Sao_Paulo",
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "09:00", Close: "18:00"},
			Tuesday:   &DayHours{Open: "09:00", Close: "18:00"},
			Wednesday: &DayHours{Open: "09:00", Close: "18:00"},
			Thursday:  &DayHours{Open: "09:00", Close: "18:00"},
			Friday:    &DayHours{Open: "09:00", Close: "18:00"},
		},
	}
}

// Location resolves the account timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// DisplayName is the name used in outbound messages.
func (c *Config) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return "Clinic"
}

// MessagingAvailable reports whether templated chat messages can be sent.
func (c *Config) MessagingAvailable() bool {
	return c != nil && c.Messaging.Connected
}

// TemplateLanguage returns the account override or fallback.
func (c *Config) TemplateLanguage(fallback string) string {
	if c != nil && strings.TrimSpace(c.Messaging.Language) != "" {
		return strings.TrimSpace(c.Messaging.Language)
	}
	return fallback
}

const minutesPerDay = 24 * 60

// Day returns the calling hours for weekday, or nil when closed.
func (b *BusinessHours) Day(weekday time.Weekday) *DayHours {
	return [...]*DayHours{
		time.Sunday:    b.Sunday,
		time.Monday:    b.Monday,
		time.Tuesday:   b.Tuesday,
		time.Wednesday: b.Wednesday,
		time.Thursday:  b.Thursday,
		time.Friday:    b.Friday,
		time.Saturday:  b.Saturday,
	}[weekday]
}

func (b *BusinessHours) configured() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if b.Day(d) != nil {
			return true
		}
	}
	return false
}

// span returns the window as minutes after local midnight. A close at or
// before the open runs into the next day, so until may exceed one day.
func (h *DayHours) span() (from, until int, ok bool) {
	if h == nil {
		return 0, 0, false
	}
	from, ok = clockMinutes(h.Open)
	if !ok || from >= minutesPerDay {
		return 0, 0, false
	}
	until, ok = clockMinutes(h.Close)
	if !ok {
		return 0, 0, false
	}
	if until <= from {
		until += minutesPerDay
	}
	return from, until, true
}

// clockMinutes parses "15:04"; "24:00" is the end of the day.
func clockMinutes(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return minutesPerDay, true
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// IsOpenAt reports whether calls may be placed at t in the account timezone.
// Hours that close past midnight keep the window open into the next morning.
// With no hours configured at all the window is always open.
func (c *Config) IsOpenAt(t time.Time) bool {
	if !c.BusinessHours.configured() {
		return true
	}
	local := t.In(c.Location())
	minute := local.Hour()*60 + local.Minute()

	if from, until, ok := c.BusinessHours.Day(local.Weekday()).span(); ok && minute >= from && minute < until {
		return true
	}
	previous := (local.Weekday() + 6) % 7
	if _, until, ok := c.BusinessHours.Day(previous).span(); ok && minute < until-minutesPerDay {
		return true
	}
	return false
}

// Source resolves business configuration by owner id.
type Source interface {
	Get(ctx context.Context, ownerID string) (*Config, error)
}

// Store provides Redis persistence for business configurations.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new business config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(ownerID string) string {
	return fmt.Sprintf("business:config:%s", ownerID)
}

// Get retrieves the config, returning the default if none was saved.
func (s *Store) Get(ctx context.Context, ownerID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(ownerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("business: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("business: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Set saves the config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("business: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.OwnerID), data, 0).Err(); err != nil {
		return fmt.Errorf("business: set config: %w", err)
	}
	return nil
}
