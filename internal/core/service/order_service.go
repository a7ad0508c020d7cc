package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/lifecycle"
	"github.com/rl1809/pizzeria/internal/core/pricing"
	"github.com/rl1809/pizzeria/internal/port"
)

// SubmitRequest is a finalized wizard submission plus the caller identity.
// UserID is set for authenticated callers, GuestID otherwise.
type SubmitRequest struct {
	RequestID  string
	UserID     string
	GuestID    string
	Submission domain.Submission
}

// tracked is an order whose status the service still drives. guestKey is
// empty when the order lives in the SQL store.
type tracked struct {
	order    domain.Order
	guestKey string
	pending  bool
}

type OrderService struct {
	orders  port.OrderRepository
	guests  port.GuestOrderStore
	cache   port.CacheRepository
	feed    port.StatusFeed
	changes port.ChangeFeed
	logger  *zap.Logger
	now     func() time.Time

	notifyQueue chan domain.Order

	mu       sync.Mutex
	tracked  map[string]*tracked
	watchers map[string]map[chan domain.Order]struct{}
}

func NewOrderService(orders port.OrderRepository, guests port.GuestOrderStore, cache port.CacheRepository, logger *zap.Logger, queueSize int) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:      orders,
		guests:      guests,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
		notifyQueue: make(chan domain.Order, queueSize),
		tracked:     make(map[string]*tracked),
		watchers:    make(map[string]map[chan domain.Order]struct{}),
	}
}

// WithStatusFeed makes the service track new orders on f. ConsumeFeed must
// run for the updates to be applied.
func (s *OrderService) WithStatusFeed(f port.StatusFeed) *OrderService {
	s.feed = f
	return s
}

func (s *OrderService) WithChangeFeed(f port.ChangeFeed) *OrderService {
	s.changes = f
	return s
}

// Submit places an order. Persisting goes to the SQL store for users and to
// the guest store otherwise; a failed SQL write falls back to the guest store
// under the user id. Notification is queued and never blocks the order.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (*domain.Order, error) {
	sub := req.Submission
	if !sub.Ready() {
		return nil, ErrNotReady
	}
	if req.UserID == "" && req.GuestID == "" {
		return nil, invalid("guestId", "required without a user id")
	}

	if req.RequestID == "" {
		return s.place(ctx, req)
	}
	key := "order:" + req.RequestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}
	order, err := s.place(ctx, req)
	if err != nil {
		// The cart is still in the session; a retry with the same id must go through.
		if rerr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); rerr != nil {
			s.logger.Warn("idempotency release failed", zap.String("request_id", req.RequestID), zap.Error(rerr))
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) place(ctx context.Context, req SubmitRequest) (*domain.Order, error) {
	sub := req.Submission
	number, err := s.cache.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("order number allocation failed: %w", err)
	}

	q := pricing.QuoteItems(sub.Items, sub.DeliveryType)
	now := s.now()
	order := domain.Order{
		ID:            uuid.NewString(),
		Number:        number,
		UserID:        req.UserID,
		GuestID:       req.GuestID,
		Status:        domain.OrderStatusConfirmed,
		DeliveryType:  sub.DeliveryType,
		PaymentMethod: sub.PaymentMethod,
		Items:         domain.CloneItems(sub.Items),
		Subtotal:      q.Subtotal,
		DeliveryFee:   q.DeliveryFee,
		Total:         q.Total,
		CustomerName:  sub.Customer.Name,
		CustomerPhone: sub.Customer.Phone,
		Address:       sub.Customer.Address,
		EstimatedTime: sub.DeliveryType.EstimatedTime(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sub.PaymentMethod == domain.PaymentMethodCash && sub.CashChange != nil {
		c := *sub.CashChange
		order.CashChange = &c
	}

	guestKey, err := s.persist(ctx, order)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tracked[order.ID] = &tracked{order: order.Clone(), guestKey: guestKey}
	s.mu.Unlock()

	if s.feed != nil {
		s.feed.Track(order.Clone())
	}
	s.publish(ctx, port.ChangeEvent{Table: port.TableOrders, Op: "insert", ID: order.ID})
	s.enqueueNotification(order)

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.Number),
		zap.String("delivery_type", string(order.DeliveryType)),
		zap.String("total", order.Total.String()),
	)
	return &order, nil
}

func (s *OrderService) persist(ctx context.Context, order domain.Order) (string, error) {
	if order.UserID == "" {
		if err := s.guests.SaveGuestOrder(ctx, order.GuestID, order); err != nil {
			return "", fmt.Errorf("save guest order: %w", err)
		}
		return order.GuestID, nil
	}

	err := s.orders.CreateOrder(ctx, order)
	if err == nil {
		return "", nil
	}
	s.logger.Warn("order store unavailable, keeping order locally",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Error(err),
	)
	if ferr := s.guests.SaveGuestOrder(ctx, order.UserID, order); ferr != nil {
		return "", fmt.Errorf("save order: %w", errors.Join(err, ferr))
	}
	return order.UserID, nil
}

func (s *OrderService) enqueueNotification(order domain.Order) {
	select {
	case s.notifyQueue <- order.Clone():
	default:
		s.logger.Warn("notification queue full, dropping notification",
			zap.String("order_id", order.ID),
			zap.Int64("order_number", order.Number),
		)
	}
}

// GetNotificationQueue exposes the queue drained by DispatchNotifications.
func (s *OrderService) GetNotificationQueue() <-chan domain.Order {
	return s.notifyQueue
}

// DispatchNotifications drains the queue until it is closed. Failures are
// logged and dropped.
func (s *OrderService) DispatchNotifications(ctx context.Context, workerID int, n port.Notifier) {
	for order := range s.notifyQueue {
		if err := n.Notify(ctx, order); err != nil {
			s.logger.Error("notification failed",
				zap.Int("worker", workerID),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}
		s.logger.Debug("notification sent",
			zap.Int("worker", workerID),
			zap.String("order_id", order.ID),
		)
	}
}

// Close stops accepting notifications; workers exit once the queue drains.
func (s *OrderService) Close() {
	close(s.notifyQueue)
}

// ConsumeFeed applies status updates from the feed until it closes or ctx
// is done.
func (s *OrderService) ConsumeFeed(ctx context.Context) {
	if s.feed == nil {
		return
	}
	updates := s.feed.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if _, err := s.Advance(ctx, u.OrderID, u.Status); err != nil {
				s.logger.Debug("status update ignored",
					zap.String("order_id", u.OrderID),
					zap.String("status", string(u.Status)),
					zap.Error(err),
				)
			}
		}
	}
}

// Advance moves a tracked order one step forward on its path. The new status
// is applied locally even when the write fails; the order stays pending
// until Reconcile resolves it.
func (s *OrderService) Advance(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	t, ok := s.tracked[orderID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrOrderNotFound
	}
	next := t.order.Clone()
	if err := lifecycle.Advance(&next, to, s.now()); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	t.order = next
	guestKey := t.guestKey
	s.mu.Unlock()

	err := s.writeStatus(ctx, guestKey, next)

	s.mu.Lock()
	t.pending = err != nil
	next.Pending = t.pending
	if next.Status == domain.OrderStatusCompleted && !t.pending {
		delete(s.tracked, orderID)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("status write failed, pending confirmation",
			zap.String("order_id", orderID),
			zap.String("status", string(to)),
			zap.Error(err),
		)
	} else {
		s.publish(ctx, port.ChangeEvent{Table: port.TableOrders, Op: "update", ID: orderID})
	}
	s.broadcast(next)
	return &next, nil
}

func (s *OrderService) writeStatus(ctx context.Context, guestKey string, o domain.Order) error {
	if guestKey != "" {
		return s.guests.UpdateGuestOrderStatus(ctx, guestKey, o.ID, o.Status, o.UpdatedAt)
	}
	return s.orders.UpdateOrderStatus(ctx, o.ID, o.Status, o.UpdatedAt)
}

// UpdateStatus is the operator path: any of the five statuses may be set at
// any time on a stored order.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if _, ok := domain.ParseStatus(string(status)); !ok {
		return nil, invalid("status", "unknown status %q", status)
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	now := s.now()
	if err := s.orders.UpdateOrderStatus(ctx, orderID, status, now); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	order.Status, order.UpdatedAt = status, now

	s.mu.Lock()
	if t, ok := s.tracked[orderID]; ok {
		t.order.Status, t.order.UpdatedAt = status, now
		t.pending = false
		if status == domain.OrderStatusCompleted {
			delete(s.tracked, orderID)
		}
	}
	s.mu.Unlock()

	s.publish(ctx, port.ChangeEvent{Table: port.TableOrders, Op: "update", ID: orderID})
	s.broadcast(*order)
	return order, nil
}

// Reconcile resolves pending status writes against the stores. A pending
// status already stored is confirmed; otherwise the write is retried once
// and, if that fails too, the stored status wins.
func (s *OrderService) Reconcile(ctx context.Context) {
	s.mu.Lock()
	var pending []tracked
	for _, t := range s.tracked {
		if t.pending {
			pending = append(pending, *t)
		}
	}
	s.mu.Unlock()

	for _, p := range pending {
		stored, err := s.fetch(ctx, p.guestKey, p.order.ID)
		if err != nil {
			s.logger.Warn("reconcile fetch failed", zap.String("order_id", p.order.ID), zap.Error(err))
			continue
		}

		resolved := p.order
		if stored.Status != p.order.Status {
			if werr := s.writeStatus(ctx, p.guestKey, p.order); werr != nil {
				s.logger.Warn("reconcile reverted to stored status",
					zap.String("order_id", p.order.ID),
					zap.String("local", string(p.order.Status)),
					zap.String("stored", string(stored.Status)),
					zap.Error(werr),
				)
				resolved = stored.Clone()
			}
		}

		s.mu.Lock()
		if t, ok := s.tracked[p.order.ID]; ok && t.order.Status == p.order.Status {
			t.order = resolved.Clone()
			t.pending = false
			if resolved.Status == domain.OrderStatusCompleted {
				delete(s.tracked, p.order.ID)
			}
		}
		s.mu.Unlock()
		s.broadcast(resolved)
	}
}

func (s *OrderService) fetch(ctx context.Context, guestKey, orderID string) (domain.Order, error) {
	if guestKey == "" {
		o, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		return *o, nil
	}
	list, err := s.guests.ListGuestOrders(ctx, guestKey)
	if err != nil {
		return domain.Order{}, err
	}
	for _, o := range list {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, port.ErrNotFound
}

// Caller is who asks for an order: a signed-in user, a guest, or neither.
type Caller struct {
	UserID  string
	GuestID string
}

func (c Caller) Anonymous() bool { return c.UserID == "" && c.GuestID == "" }

func (c Caller) owns(o domain.Order) bool {
	return (c.UserID != "" && o.UserID == c.UserID) || (c.GuestID != "" && o.GuestID == c.GuestID)
}

// GetOrder returns one of the caller's orders. Orders of anyone else are
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, c Caller) (*domain.Order, error) {
	if c.Anonymous() {
		return nil, ErrOrderNotFound
	}
	if o := s.trackedCopy(orderID); o != nil {
		if !c.owns(*o) {
			return nil, ErrOrderNotFound
		}
		return o, nil
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err == nil {
		if !c.owns(*o) {
			return nil, ErrOrderNotFound
		}
		return o, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		s.logger.Warn("order fetch failed", zap.String("order_id", orderID), zap.Error(err))
	}
	for _, key := range []string{c.GuestID, c.UserID} {
		if key == "" {
			continue
		}
		if g, gerr := s.fetch(ctx, key, orderID); gerr == nil && c.owns(g) {
			return &g, nil
		}
	}
	// Guest orders never live in the SQL store.
	if errors.Is(err, port.ErrNotFound) || c.UserID == "" {
		return nil, ErrOrderNotFound
	}
	return nil, fmt.Errorf("get order: %w", err)
}

// ListUserOrders returns the user's orders merged with any kept locally
// after a failed write. A store failure falls back to the local copy.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, invalid("userId", "required")
	}
	remote, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("order listing failed, using local orders", zap.String("user_id", userID), zap.Error(err))
	}
	local, lerr := s.guests.ListGuestOrders(ctx, userID)
	if lerr != nil {
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", errors.Join(err, lerr))
		}
		s.logger.Warn("local order listing failed", zap.String("user_id", userID), zap.Error(lerr))
	}
	return s.overlay(merge(remote, local)), nil
}

func (s *OrderService) ListGuestOrders(ctx context.Context, guestID string) ([]domain.Order, error) {
	if guestID == "" {
		return nil, invalid("guestId", "required")
	}
	list, err := s.guests.ListGuestOrders(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("list guest orders: %w", err)
	}
	return s.overlay(list), nil
}

// ClearCompleted drops the guest's completed orders.
func (s *OrderService) ClearCompleted(ctx context.Context, guestID string) (int, error) {
	if guestID == "" {
		return 0, invalid("guestId", "required")
	}
	n, err := s.guests.ClearCompletedGuestOrders(ctx, guestID)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return n, nil
}

// SyncOrderNumbers raises the order number sequence above the highest
// stored number so a flushed cache never reissues a number.
func (s *OrderService) SyncOrderNumbers(ctx context.Context) error {
	highest, err := s.orders.MaxOrderNumber(ctx)
	if err != nil {
		return fmt.Errorf("max order number: %w", err)
	}
	return s.cache.EnsureOrderNumberFloor(ctx, highest)
}

// Subscribe streams status changes of one order until cancel is called.
func (s *OrderService) Subscribe(orderID string) (<-chan domain.Order, func()) {
	ch := make(chan domain.Order, 8)
	s.mu.Lock()
	if s.watchers[orderID] == nil {
		s.watchers[orderID] = make(map[chan domain.Order]struct{})
	}
	s.watchers[orderID][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[orderID], ch)
			if len(s.watchers[orderID]) == 0 {
				delete(s.watchers, orderID)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *OrderService) broadcast(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[o.ID] {
		select {
		case ch <- o.Clone():
		default:
		}
	}
}

func (s *OrderService) publish(ctx context.Context, ev port.ChangeEvent) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, ev); err != nil {
		s.logger.Warn("change publish failed", zap.String("table", ev.Table), zap.Error(err))
	}
}

func (s *OrderService) trackedCopy(orderID string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[orderID]
	if !ok {
		return nil
	}
	o := t.order.Clone()
	o.Pending = t.pending
	return &o
}

// overlay replaces listed orders with the locally tracked state.
func (s *OrderService) overlay(list []domain.Order) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, len(list))
	for i, o := range list {
		if t, ok := s.tracked[o.ID]; ok {
			o = t.order.Clone()
			o.Pending = t.pending
		}
		out[i] = o
	}
	return out
}

func merge(a, b []domain.Order) []domain.Order {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]domain.Order, 0, len(a)+len(b))
	for _, list := range [][]domain.Order{a, b} {
		for _, o := range list {
			if seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SplitActive separates active orders from completed ones.
func SplitActive(orders []domain.Order) (active, completed []domain.Order) {
	for _, o := range orders {
		if o.IsActive() {
			active = append(active, o)
		} else {
			completed = append(completed, o)
		}
	}
	return active, completed
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
