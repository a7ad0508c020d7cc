package handler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// memStore backs every repository port with maps so the handlers can be
// exercised end to end without Redis or SQL.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	guests   map[string][]domain.Order
	keys     map[string]bool
	seq      int64
	products map[string]domain.Product
	combos   map[string]domain.Combo
	menu     *domain.Menu
	menuDown bool
}

var (
	_ port.OrderRepository = (*memStore)(nil)
	_ port.GuestOrderStore = (*memStore)(nil)
	_ port.CacheRepository = (*memStore)(nil)
	_ port.MenuRepository  = (*memStore)(nil)
)

func newMemStore() *memStore {
	m := &memStore{
		orders:   make(map[string]domain.Order),
		guests:   make(map[string][]domain.Order),
		keys:     make(map[string]bool),
		products: make(map[string]domain.Product),
		combos:   make(map[string]domain.Combo),
	}
	for _, p := range []domain.Product{
		{
			ID: "calabresa", Name: "Calabresa", Category: domain.CategorySavory, Available: true,
			Prices: []domain.PriceOption{{Size: string(domain.SizeM), Price: domain.Reais(40, 0)}},
		},
		{
			ID: "guarana", Name: "Guaraná", Category: domain.CategoryDrinks, Available: true,
			Prices: []domain.PriceOption{{Size: "2L", Price: domain.Reais(12, 0)}},
		},
	} {
		m.products[p.ID] = p
	}
	return m
}

func newest(list []domain.Order) []domain.Order {
	sort.Slice(list, func(i, j int) bool { return list[i].Number > list[j].Number })
	return list
}

func (m *memStore) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (m *memStore) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	return newest(out), nil
}

func (m *memStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	return newest(out), nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return port.ErrNotFound
	}
	o.Status, o.UpdatedAt = status, at
	m.orders[id] = o
	return nil
}

func (m *memStore) MaxOrderNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var highest int64
	for _, o := range m.orders {
		highest = max(highest, o.Number)
	}
	return highest, nil
}

func (m *memStore) SaveGuestOrder(ctx context.Context, guestID string, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guests[guestID] = append([]domain.Order{order.Clone()}, m.guests[guestID]...)
	return nil
}

func (m *memStore) ListGuestOrders(ctx context.Context, guestID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.guests[guestID]))
	for _, o := range m.guests[guestID] {
		out = append(out, o.Clone())
	}
	return out, nil
}

func (m *memStore) UpdateGuestOrderStatus(ctx context.Context, guestID, orderID string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.guests[guestID] {
		if o.ID == orderID {
			m.guests[guestID][i].Status = status
			m.guests[guestID][i].UpdatedAt = at
			return nil
		}
	}
	return port.ErrNotFound
}

func (m *memStore) ClearCompletedGuestOrders(ctx context.Context, guestID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.Order
	for _, o := range m.guests[guestID] {
		if o.IsActive() {
			kept = append(kept, o)
		}
	}
	n := len(m.guests[guestID]) - len(kept)
	m.guests[guestID] = kept
	return n, nil
}

func (m *memStore) NextOrderNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *memStore) EnsureOrderNumberFloor(ctx context.Context, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = max(m.seq, floor)
	return nil
}

func (m *memStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memStore) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func (m *memStore) GetMenu(ctx context.Context) (*domain.Menu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menu, nil
}

func (m *memStore) SetMenu(ctx context.Context, menu *domain.Menu, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menu = menu
	return nil
}

func (m *memStore) InvalidateMenu(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menu = nil
	return nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]domain.CategoryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.menuDown {
		return nil, errors.New("catalogue unavailable")
	}
	return []domain.CategoryInfo{
		{ID: domain.CategorySavory, Label: "Pizzas Salgadas", DisplayOrder: 1},
		{ID: domain.CategoryDrinks, Label: "Bebidas", DisplayOrder: 4},
	}, nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListCombos(ctx context.Context) ([]domain.Combo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Combo
	for _, c := range m.combos {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) UpsertProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *memStore) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) UpsertCombo(ctx context.Context, c domain.Combo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combos[c.ID] = c
	return nil
}
