package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerIDRoundTrip(t *testing.T) {
	got, ok := OwnerIDFromContext(WithOwnerID(context.Background(), "owner-123"))
	assert.True(t, ok)
	assert.Equal(t, "owner-123", got)
}

func TestOwnerIDFromContext_EmptyOrMissing(t *testing.T) {
	_, ok := OwnerIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OwnerIDFromContext(WithOwnerID(context.Background(), ""))
	assert.False(t, ok)
}

func TestAuthorize(t *testing.T) {
	ctx := WithOwnerID(context.Background(), "owner-1")

	assert.NoError(t, Authorize(ctx, "owner-1"))
	assert.ErrorIs(t, Authorize(ctx, "owner-2"), ErrForeignOwner)
	assert.ErrorIs(t, Authorize(ctx, ""), ErrForeignOwner)
	assert.ErrorIs(t, Authorize(context.Background(), "owner-1"), ErrNoOwner)
}
