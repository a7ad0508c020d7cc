package port

import (
	"context"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

type CacheRepository interface {
	// NextOrderNumber atomically allocates the next order number
	NextOrderNumber(ctx context.Context) (int64, error)

	// EnsureOrderNumberFloor raises the sequence to at least floor
	EnsureOrderNumberFloor(ctx context.Context, floor int64) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key whose request did not complete
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetMenu returns the cached menu snapshot, nil on a miss
	GetMenu(ctx context.Context) (*domain.Menu, error)

	SetMenu(ctx context.Context, menu *domain.Menu, ttl time.Duration) error

	InvalidateMenu(ctx context.Context) error
}

// GuestOrderStore keeps orders of callers without an account, keyed by an
// opaque guest id.
type GuestOrderStore interface {
	SaveGuestOrder(ctx context.Context, guestID string, order domain.Order) error

	// ListGuestOrders returns the guest's orders, newest first
	ListGuestOrders(ctx context.Context, guestID string) ([]domain.Order, error)

	UpdateGuestOrderStatus(ctx context.Context, guestID, orderID string, status domain.OrderStatus, at time.Time) error

	// ClearCompletedGuestOrders drops completed orders, returning how many
	ClearCompletedGuestOrders(ctx context.Context, guestID string) (int, error)
}
