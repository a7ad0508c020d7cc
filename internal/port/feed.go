package port

import (
	"context"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// StatusUpdate is a status change pushed for a placed order.
type StatusUpdate struct {
	OrderID string
	Status  domain.OrderStatus
	At      time.Time
}

// StatusFeed delivers status updates for tracked orders.
type StatusFeed interface {
	// Track starts emitting updates for order
	Track(order domain.Order)

	Updates() <-chan StatusUpdate

	// Stop drops pending updates and closes the channel
	Stop()
}

// Change feed tables.
const (
	TableOrders        = "orders"
	TableProducts      = "products"
	TableProductPrices = "product_prices"
	TableCombos        = "combos"
)

type ChangeEvent struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
}

// ChangeFeed broadcasts data store changes to subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, ev ChangeEvent) error

	// Subscribe returns events until ctx is done
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

// Notifier dispatches a placed order to an operational channel.
type Notifier interface {
	Notify(ctx context.Context, order domain.Order) error
}
