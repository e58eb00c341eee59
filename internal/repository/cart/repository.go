package cart

import (
	"context"

	"gogenie-storefront/internal/domain"
)

// MutateFunc receives the stored lines of a session cart and returns the
// lines to persist. Returning an error aborts the mutation.
type MutateFunc func(items []domain.CartItem) ([]domain.CartItem, error)

// Repository persists one cart per shopping session. Load returns an empty
// slice for unknown sessions. Mutate runs fn under a per-session lock so
// concurrent mutations of the same cart never interleave.
type Repository interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartItem, error)
	Mutate(ctx context.Context, sessionID string, fn MutateFunc) ([]domain.CartItem, error)
	Delete(ctx context.Context, sessionID string) error
}
