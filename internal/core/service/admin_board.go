package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// StatusSetter is the operator write path the board goes through.
type StatusSetter interface {
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
}

// AdminBoard holds the operator's view of all orders. Every refresh is a
// full replace; results of a fetch started before the last applied one are
// dropped.
type AdminBoard struct {
	orders   port.OrderRepository
	setter   StatusSetter
	changes  port.ChangeFeed
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// OnNewOrders is called when the order count grows between two
	// refreshes that both saw orders.
	OnNewOrders func(added int)

	seq atomic.Uint64

	mu        sync.RWMutex
	applied   uint64
	list      []domain.Order
	lastCount int
	pending   map[string]domain.OrderStatus
}

func NewAdminBoard(orders port.OrderRepository, setter StatusSetter, changes port.ChangeFeed, interval time.Duration, logger *zap.Logger) *AdminBoard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminBoard{
		orders:   orders,
		setter:   setter,
		changes:  changes,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string]domain.OrderStatus),
	}
}

// Refresh refetches every order and replaces the board's state.
func (b *AdminBoard) Refresh(ctx context.Context) error {
	seq := b.seq.Add(1)
	list, err := b.orders.ListOrders(ctx)
	if err != nil {
		b.logger.Warn("admin refresh failed", zap.Uint64("seq", seq), zap.Error(err))
		return err
	}
	b.apply(seq, list)
	return nil
}

func (b *AdminBoard) apply(seq uint64, list []domain.Order) {
	b.mu.Lock()
	if seq < b.applied {
		b.mu.Unlock()
		b.logger.Debug("stale admin refresh dropped", zap.Uint64("seq", seq))
		return
	}
	b.applied = seq

	for i := range list {
		want, ok := b.pending[list[i].ID]
		if !ok {
			continue
		}
		if list[i].Status != want {
			b.logger.Warn("unconfirmed status change reverted",
				zap.String("order_id", list[i].ID),
				zap.String("local", string(want)),
				zap.String("stored", string(list[i].Status)),
			)
		}
		delete(b.pending, list[i].ID)
	}

	added := 0
	if len(list) > b.lastCount && b.lastCount > 0 {
		added = len(list) - b.lastCount
	}
	b.lastCount = len(list)
	b.list = list
	notify := b.OnNewOrders
	b.mu.Unlock()

	if added > 0 {
		b.logger.Info("new orders arrived", zap.Int("added", added))
		if notify != nil {
			notify(added)
		}
	}
}

// Run refreshes on the poll interval and on order change events until ctx
// is done.
func (b *AdminBoard) Run(ctx context.Context) {
	_ = b.Refresh(ctx)

	var events <-chan port.ChangeEvent
	if b.changes != nil {
		ch, err := b.changes.Subscribe(ctx)
		if err != nil {
			b.logger.Warn("admin change feed unavailable, polling only", zap.Error(err))
		} else {
			events = ch
		}
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go b.Refresh(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Table == port.TableOrders {
				go b.Refresh(ctx)
			}
		}
	}
}

// SetStatus applies an operator status change. The board shows the new
// status right away; if the store write fails it stays marked pending until
// the next refresh resolves it against the stored value.
func (b *AdminBoard) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if _, ok := domain.ParseStatus(string(status)); !ok {
		return domain.Order{}, invalid("status", "unknown status %q", status)
	}

	b.mu.Lock()
	idx := b.index(orderID)
	var local domain.Order
	if idx >= 0 {
		b.list[idx].Status = status
		b.list[idx].UpdatedAt = b.now()
		local = b.list[idx].Clone()
	}
	b.mu.Unlock()

	stored, err := b.setter.UpdateStatus(ctx, orderID, status)
	switch {
	case err == nil:
		b.mu.Lock()
		delete(b.pending, orderID)
		if i := b.index(orderID); i >= 0 {
			b.list[i] = stored.Clone()
		}
		b.mu.Unlock()
		return stored.Clone(), nil
	case errors.Is(err, ErrOrderNotFound) && idx < 0, IsValidation(err):
		return domain.Order{}, err
	}

	b.logger.Warn("status write failed, pending confirmation",
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
		zap.Error(err),
	)
	if idx < 0 {
		return domain.Order{}, err
	}
	b.mu.Lock()
	b.pending[orderID] = status
	b.mu.Unlock()
	local.Pending = true
	return local, nil
}

func (b *AdminBoard) index(orderID string) int {
	for i := range b.list {
		if b.list[i].ID == orderID {
			return i
		}
	}
	return -1
}

// Orders returns the board's orders matching a search term (customer name,
// phone or order number) and a status ("" or "all" for every status).
func (b *AdminBoard) Orders(query, status string) []domain.Order {
	q := normalize(query)
	st := normalize(status)
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Order, 0, len(b.list))
	for _, o := range b.list {
		if st != "" && st != "all" && string(o.Status) != st {
			continue
		}
		if q != "" && !matches(o, q) {
			continue
		}
		c := o.Clone()
		_, c.Pending = b.pending[o.ID]
		out = append(out, c)
	}
	return out
}

func matches(o domain.Order, q string) bool {
	return strings.Contains(strings.ToLower(o.CustomerName), q) ||
		strings.Contains(o.CustomerPhone, q) ||
		strings.Contains(strconv.FormatInt(o.Number, 10), q)
}

// Counts returns the number of orders per status plus "all".
func (b *AdminBoard) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := map[string]int{"all": len(b.list)}
	for _, s := range domain.AllStatuses {
		counts[string(s)] = 0
	}
	for _, o := range b.list {
		counts[string(o.Status)]++
	}
	return counts
}

// Sales aggregates the board's orders over a period.
func (b *AdminBoard) Sales(p Period, from, to time.Time) SalesStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ComputeSales(b.list, p, b.now(), from, to)
}
