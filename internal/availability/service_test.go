package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResources struct {
	byID    map[string]Resource
	peerErr error
	gets    int
}

func newFakeResources(resources ...Resource) *fakeResources {
	f := &fakeResources{byID: make(map[string]Resource)}
	for _, r := range resources {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeResources) GetResource(_ context.Context, resourceID string) (*Resource, error) {
	f.gets++
	r, ok := f.byID[resourceID]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &r, nil
}

func (f *fakeResources) ListPeers(_ context.Context, ownerID, excludeResourceID string) ([]Resource, error) {
	if f.peerErr != nil {
		return nil, f.peerErr
	}
	var out []Resource
	for _, r := range f.byID {
		if r.OwnerID == ownerID && r.ID != excludeResourceID {
			out = append(out, r)
		}
	}
	// Map iteration is random; order by name like the SQL store does.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Name < out[j-1].Name; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func testResource(id, owner, name string, hours WorkingHours) Resource {
	return Resource{
		ID:       id,
		OwnerID:  owner,
		Name:     name,
		Kind:     KindDoctor,
		Category: "dermatology",
		Schedule: Schedule{
			ResourceID:   id,
			Timezone:     "UTC",
			SlotDuration: time.Hour,
			WorkingHours: hours,
		},
	}
}

func TestService_QueriesByResourceID(t *testing.T) {
	now := time.Date(2025, 11, 16, 12, 0, 0, 0, time.UTC)
	res := testResource("res-1", "owner-1", "Dr. Silva", weekdayHours(TimeWindow{Start: "09:00", End: "11:00"}))
	svc := NewService(newFakeResources(res), newTestFinder(&fakeAppointments{}, now))
	ctx := context.Background()

	next, err := svc.NextSlot(ctx, "res-1", now)
	require.NoError(t, err)
	assert.True(t, next.Start.Equal(time.Date(2025, 11, 17, 9, 0, 0, 0, time.UTC)))

	slots, err := svc.Slots(ctx, "res-1", now, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, next, slots[0])

	onDate, err := svc.SlotsOnDate(ctx, "res-1", "2025-11-18")
	require.NoError(t, err)
	assert.Len(t, onDate, 2)

	before, err := svc.SlotsBefore(ctx, "res-1", "2025-11-18", 5)
	require.NoError(t, err)
	assert.Len(t, before, 2)

	_, err = svc.NextSlot(ctx, "missing", now)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestService_AlternativesHidesFallback(t *testing.T) {
	now := time.Date(2025, 11, 16, 12, 0, 0, 0, time.UTC)
	primary := testResource("res-1", "owner-1", "Dr. Silva", weekdayHours(TimeWindow{Start: "09:00", End: "10:00"}))
	open := testResource("res-2", "owner-1", "Dr. Almeida", weekdayHours(TimeWindow{Start: "14:00", End: "15:00"}))
	closed := testResource("res-3", "owner-1", "Dr. Costa", WorkingHours{})
	foreign := testResource("res-4", "owner-2", "Dr. Other", weekdayHours(TimeWindow{Start: "09:00", End: "10:00"}))
	svc := NewService(newFakeResources(primary, open, closed, foreign), newTestFinder(&fakeAppointments{}, now))

	alts, err := svc.Alternatives(context.Background(), "res-1", now)
	require.NoError(t, err)
	require.Len(t, alts, 2)

	assert.Equal(t, "res-2", alts[0].ResourceID)
	require.NotNil(t, alts[0].Next)
	assert.Equal(t, 14, alts[0].Next.Start.Hour())

	assert.Equal(t, "res-3", alts[1].ResourceID)
	assert.Nil(t, alts[1].Next)
}

func TestService_AlternativesPeerError(t *testing.T) {
	res := testResource("res-1", "owner-1", "Dr. Silva", WorkingHours{})
	store := newFakeResources(res)
	store.peerErr = errors.New("db down")
	svc := NewService(store, newTestFinder(&fakeAppointments{}, time.Now()))

	_, err := svc.Alternatives(context.Background(), "res-1", time.Now())
	assert.ErrorIs(t, err, store.peerErr)
}
