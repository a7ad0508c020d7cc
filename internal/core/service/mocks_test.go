package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

var errStoreDown = errors.New("store down")

// Mock OrderRepository
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	failWrite bool
	failRead  bool
	listHook  func()
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errStoreDown
	}
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errStoreDown
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (m *mockOrderRepo) sorted(keep func(domain.Order) bool) []domain.Order {
	var out []domain.Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

func (m *mockOrderRepo) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, errStoreDown
	}
	return m.sorted(func(o domain.Order) bool { return o.UserID == userID }), nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	hook := m.listHook
	if m.failRead {
		m.mu.Unlock()
		return nil, errStoreDown
	}
	out := m.sorted(func(domain.Order) bool { return true })
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errStoreDown
	}
	o, ok := m.orders[id]
	if !ok {
		return port.ErrNotFound
	}
	o.Status, o.UpdatedAt = status, at
	m.orders[id] = o
	return nil
}

func (m *mockOrderRepo) MaxOrderNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, o := range m.orders {
		if o.Number > max {
			max = o.Number
		}
	}
	return max, nil
}

func (m *mockOrderRepo) setWriteFailure(fail bool) {
	m.mu.Lock()
	m.failWrite = fail
	m.mu.Unlock()
}

func (m *mockOrderRepo) status(id string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

// Mock GuestOrderStore
type mockGuestStore struct {
	mu        sync.Mutex
	orders    map[string][]domain.Order
	failWrite bool
}

func newMockGuestStore() *mockGuestStore {
	return &mockGuestStore{orders: make(map[string][]domain.Order)}
}

func (m *mockGuestStore) SaveGuestOrder(ctx context.Context, guestID string, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errStoreDown
	}
	m.orders[guestID] = append([]domain.Order{order.Clone()}, m.orders[guestID]...)
	return nil
}

func (m *mockGuestStore) ListGuestOrders(ctx context.Context, guestID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders[guestID]))
	for _, o := range m.orders[guestID] {
		out = append(out, o.Clone())
	}
	return out, nil
}

func (m *mockGuestStore) UpdateGuestOrderStatus(ctx context.Context, guestID, orderID string, status domain.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errStoreDown
	}
	for i, o := range m.orders[guestID] {
		if o.ID == orderID {
			m.orders[guestID][i].Status = status
			m.orders[guestID][i].UpdatedAt = at
			return nil
		}
	}
	return port.ErrNotFound
}

func (m *mockGuestStore) ClearCompletedGuestOrders(ctx context.Context, guestID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.Order
	for _, o := range m.orders[guestID] {
		if o.IsActive() {
			kept = append(kept, o)
		}
	}
	n := len(m.orders[guestID]) - len(kept)
	m.orders[guestID] = kept
	return n, nil
}

func (m *mockGuestStore) setWriteFailure(fail bool) {
	m.mu.Lock()
	m.failWrite = fail
	m.mu.Unlock()
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	seq            int64
	idempotencySet map[string]bool
	menu           *domain.Menu
	menuTTL        time.Duration
	invalidations  int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *mockCacheRepo) EnsureOrderNumberFloor(ctx context.Context, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq < floor {
		m.seq = floor
	}
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) GetMenu(ctx context.Context) (*domain.Menu, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menu, nil
}

func (m *mockCacheRepo) SetMenu(ctx context.Context, menu *domain.Menu, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menu, m.menuTTL = menu, ttl
	return nil
}

func (m *mockCacheRepo) InvalidateMenu(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menu = nil
	m.invalidations++
	return nil
}

// Mock Notifier
type mockNotifier struct {
	mu    sync.Mutex
	sent  []domain.Order
	fail  bool
	calls int
}

func (m *mockNotifier) Notify(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("webhook down")
	}
	m.sent = append(m.sent, order)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock StatusFeed
type mockFeed struct {
	mu      sync.Mutex
	tracked []string
	updates chan port.StatusUpdate
}

func newMockFeed() *mockFeed {
	return &mockFeed{updates: make(chan port.StatusUpdate, 16)}
}

func (m *mockFeed) Track(order domain.Order) {
	m.mu.Lock()
	m.tracked = append(m.tracked, order.ID)
	m.mu.Unlock()
}

func (m *mockFeed) Updates() <-chan port.StatusUpdate { return m.updates }
func (m *mockFeed) Stop()                             { close(m.updates) }

// Mock ChangeFeed
type mockChangeFeed struct {
	mu        sync.Mutex
	published []port.ChangeEvent
	events    chan port.ChangeEvent
}

func newMockChangeFeed() *mockChangeFeed {
	return &mockChangeFeed{events: make(chan port.ChangeEvent, 16)}
}

func (m *mockChangeFeed) Publish(ctx context.Context, ev port.ChangeEvent) error {
	m.mu.Lock()
	m.published = append(m.published, ev)
	m.mu.Unlock()
	return nil
}

func (m *mockChangeFeed) Subscribe(ctx context.Context) (<-chan port.ChangeEvent, error) {
	return m.events, nil
}

func (m *mockChangeFeed) tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.published {
		out = append(out, ev.Table+":"+ev.Op)
	}
	return out
}

// Mock MenuRepository
type mockMenuRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	combos   map[string]domain.Combo
	fail     bool
	loads    int
}

func newMockMenuRepo(products ...domain.Product) *mockMenuRepo {
	m := &mockMenuRepo{products: make(map[string]domain.Product), combos: make(map[string]domain.Combo)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockMenuRepo) ListCategories(ctx context.Context) ([]domain.CategoryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	m.loads++
	return []domain.CategoryInfo{{ID: domain.CategorySavory, Label: "Pizzas Salgadas", DisplayOrder: 1}}, nil
}

func (m *mockMenuRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockMenuRepo) ListCombos(ctx context.Context) ([]domain.Combo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStoreDown
	}
	var out []domain.Combo
	for _, c := range m.combos {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockMenuRepo) UpsertProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *mockMenuRepo) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockMenuRepo) UpsertCombo(ctx context.Context, c domain.Combo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.combos[c.ID] = c
	return nil
}

func (m *mockMenuRepo) setFailure(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

func portUpdate(orderID string, status domain.OrderStatus) port.StatusUpdate {
	return port.StatusUpdate{OrderID: orderID, Status: status, At: time.Now()}
}
