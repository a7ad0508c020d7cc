package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

type OrderRepository interface {
	// CreateOrder persists a new order
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order by id
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrdersByUser returns the user's orders, newest first
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// ListOrders returns every order, newest first
	ListOrders(ctx context.Context) ([]domain.Order, error)

	// UpdateOrderStatus sets the status with a version check on the row
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error

	// MaxOrderNumber returns the highest order number stored, 0 when empty
	MaxOrderNumber(ctx context.Context) (int64, error)
}

type MenuRepository interface {
	ListCategories(ctx context.Context) ([]domain.CategoryInfo, error)

	// ListProducts returns every product with its prices, available or not
	ListProducts(ctx context.Context) ([]domain.Product, error)

	ListCombos(ctx context.Context) ([]domain.Combo, error)

	// UpsertProduct replaces the product and its price list
	UpsertProduct(ctx context.Context, p domain.Product) error

	DeleteProduct(ctx context.Context, id string) error

	UpsertCombo(ctx context.Context, c domain.Combo) error
}
