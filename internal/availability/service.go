package availability

import (
	"context"
	"fmt"
	"time"
)

// ResourceStore loads resources and their schedule data.
type ResourceStore interface {
	GetResource(ctx context.Context, resourceID string) (*Resource, error)
	ListPeers(ctx context.Context, ownerID, excludeResourceID string) ([]Resource, error)
}

// Alternative pairs a peer resource with its next real opening.
type Alternative struct {
	ResourceID string `json:"resource_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Category   string `json:"category"`
	Next       *Slot  `json:"next_slot,omitempty"`
}

// Service answers slot queries by resource id.
type Service struct {
	resources ResourceStore
	finder    *Finder
}

// NewService wires a resource store to a slot finder.
func NewService(resources ResourceStore, finder *Finder) *Service {
	if resources == nil || finder == nil {
		panic("availability: resource store and finder required")
	}
	return &Service{resources: resources, finder: finder}
}

// Finder exposes the underlying slot finder for callers that already hold a schedule.
func (s *Service) Finder() *Finder {
	return s.finder
}

// Resource loads a resource by id.
func (s *Service) Resource(ctx context.Context, resourceID string) (*Resource, error) {
	res, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrResourceNotFound
	}
	return res, nil
}

func (s *Service) NextSlot(ctx context.Context, resourceID string, from time.Time) (Slot, error) {
	res, err := s.Resource(ctx, resourceID)
	if err != nil {
		return Slot{}, err
	}
	return s.finder.NextSlot(ctx, res.Schedule, from)
}

func (s *Service) Slots(ctx context.Context, resourceID string, from time.Time, max int) ([]Slot, error) {
	res, err := s.Resource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.finder.Slots(ctx, res.Schedule, from, max)
}

func (s *Service) SlotsOnDate(ctx context.Context, resourceID, date string) ([]Slot, error) {
	res, err := s.Resource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.finder.SlotsOnDate(ctx, res.Schedule, date)
}

func (s *Service) SlotsBefore(ctx context.Context, resourceID, cutoffDate string, max int) ([]Slot, error) {
	res, err := s.Resource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.finder.SlotsBefore(ctx, res.Schedule, cutoffDate, max)
}

// Alternatives lists the other resources of the same owner with their next
// real slot. Peers without availability inside the horizon have no Next.
func (s *Service) Alternatives(ctx context.Context, resourceID string, from time.Time) ([]Alternative, error) {
	res, err := s.Resource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	peers, err := s.resources.ListPeers(ctx, res.OwnerID, res.ID)
	if err != nil {
		return nil, fmt.Errorf("availability: list peers: %w", err)
	}
	out := make([]Alternative, 0, len(peers))
	for _, peer := range peers {
		alt := Alternative{
			ResourceID: peer.ID,
			Name:       peer.Name,
			Kind:       string(peer.Kind),
			Category:   peer.Category,
		}
		next, err := s.finder.NextSlot(ctx, peer.Schedule, from)
		if err != nil {
			return nil, err
		}
		if !next.Fallback {
			alt.Next = &next
		}
		out = append(out, alt)
	}
	return out, nil
}
