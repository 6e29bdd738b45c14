package outreach

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the conversation state of an outreach thread.
type RecordStatus string

const (
	RecordOpen            RecordStatus = "open"
	RecordPendingResponse RecordStatus = "pending_response"
	RecordClosed          RecordStatus = "closed"
)

// Channels an outreach message went out on.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

// OfferedSlot is a slot sent to a contact, kept for reconciling the reply.
type OfferedSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Record is the per-phone chat thread opened by outreach.
type Record struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	LeadID        string        `json:"lead_id"`
	Phone         string        `json:"phone"`
	AgentID       string        `json:"agent_id,omitempty"`
	Channel       string        `json:"channel"`
	Status        RecordStatus  `json:"status"`
	OfferedSlots  []OfferedSlot `json:"offered_slots,omitempty"`
	PromisedDate  string        `json:"promised_date,omitempty"`
	LastMessageID string        `json:"last_message_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Active reports whether the record can be reused for a new message.
func (r Record) Active() bool {
	return r.Status == RecordOpen || r.Status == RecordPendingResponse
}

// RecordStore persists outreach records keyed by E.164 phone.
type RecordStore interface {
	// FindActiveByPhone returns the newest open or pending record, or nil.
	FindActiveByPhone(ctx context.Context, phone string) (*Record, error)
	Upsert(ctx context.Context, rec Record) (*Record, error)
}

// MemoryRecordStore is an in-memory RecordStore.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]Record), now: time.Now}
}

func (m *MemoryRecordStore) FindActiveByPhone(ctx context.Context, phone string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []Record
	for _, rec := range m.records {
		if rec.Phone == phone && rec.Active() {
			found = append(found, rec)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].UpdatedAt.After(found[j].UpdatedAt) })
	rec := found[0]
	return &rec, nil
}

func (m *MemoryRecordStore) Upsert(ctx context.Context, rec Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Active() {
		for id, other := range m.records {
			if id != rec.ID && other.Phone == rec.Phone && other.Active() {
				rec.ID = id
				break
			}
		}
	}
	if existing, ok := m.records[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[rec.ID] = rec
	return &rec, nil
}

// All returns every stored record.
func (m *MemoryRecordStore) All() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
