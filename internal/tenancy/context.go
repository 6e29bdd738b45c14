// Package tenancy scopes requests to one business account.
package tenancy

import (
	"context"
	"errors"
)

var (
	// ErrNoOwner is returned when a request carries no business account.
	ErrNoOwner = errors.New("tenancy: owner required")
	// ErrForeignOwner is returned for records that belong to another account.
	ErrForeignOwner = errors.New("tenancy: record belongs to another owner")
)

type ctxKey struct{}

// WithOwnerID stores the business account id in context.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerIDFromContext extracts the business account id if present.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ctxKey{}).(string)
	return ownerID, ok && ownerID != ""
}

// Authorize checks that a record owned by recordOwnerID may be served to the
// account in ctx.
func Authorize(ctx context.Context, recordOwnerID string) error {
	ownerID, ok := OwnerIDFromContext(ctx)
	if !ok {
		return ErrNoOwner
	}
	if recordOwnerID != ownerID {
		return ErrForeignOwner
	}
	return nil
}
