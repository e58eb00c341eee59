package cart

import (
	"context"
	"sync"

	"gogenie-storefront/internal/domain"
)

type memoryRepo struct {
	mu    sync.Mutex
	carts map[string][]domain.CartItem
}

// NewMemory returns a process-local store. Carts are lost on restart.
func NewMemory() Repository {
	return &memoryRepo{carts: make(map[string][]domain.CartItem)}
}

func (r *memoryRepo) Load(_ context.Context, sessionID string) ([]domain.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneItems(r.carts[sessionID]), nil
}

func (r *memoryRepo) Mutate(ctx context.Context, sessionID string, fn MutateFunc) ([]domain.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := fn(cloneItems(r.carts[sessionID]))
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		delete(r.carts, sessionID)
		return []domain.CartItem{}, nil
	}
	r.carts[sessionID] = cloneItems(next)
	return cloneItems(next), nil
}

func (r *memoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
