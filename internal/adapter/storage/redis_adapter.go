package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

const (
	orderNumberKey       = "order_number_seq"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	guestOrdersPrefix    = "dkasa_orders:"
	menuKey              = "menu:snapshot"
	changeChannel        = "pizzeria:changes"

	maxWatchRetries = 8
)

var ErrGuestStoreBusy = errors.New("guest order store busy")

var ensureFloorScript = redis.NewScript(`
local key = KEYS[1]
local floor = tonumber(ARGV[1])

local current = tonumber(redis.call('GET', key) or '0')
if current < floor then
	redis.call('SET', key, floor)
	return floor
end

return current
`)

// RedisAdapter backs the order number sequence, idempotency keys, the guest
// order store, the menu cache and the change feed.
type RedisAdapter struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisAdapter(client *redis.Client, logger *zap.Logger) *RedisAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisAdapter{client: client, logger: logger}
}

func (r *RedisAdapter) NextOrderNumber(ctx context.Context) (int64, error) {
	return r.client.Incr(ctx, orderNumberKey).Result()
}

func (r *RedisAdapter) EnsureOrderNumberFloor(ctx context.Context, floor int64) error {
	return ensureFloorScript.Run(ctx, r.client, []string{orderNumberKey}, floor).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) GetMenu(ctx context.Context) (*domain.Menu, error) {
	raw, err := r.client.Get(ctx, menuKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.Menu
	if err := json.Unmarshal(raw, &m); err != nil {
		r.logger.Warn("dropping unreadable menu cache entry", zap.Error(err))
		return nil, nil
	}
	return &m, nil
}

func (r *RedisAdapter) SetMenu(ctx context.Context, menu *domain.Menu, ttl time.Duration) error {
	raw, err := json.Marshal(menu)
	if err != nil {
		return fmt.Errorf("encode menu: %w", err)
	}
	return r.client.Set(ctx, menuKey, raw, ttl).Err()
}

func (r *RedisAdapter) InvalidateMenu(ctx context.Context) error {
	return r.client.Del(ctx, menuKey).Err()
}

func guestKey(guestID string) string {
	return guestOrdersPrefix + guestID
}

func readGuestOrders(ctx context.Context, c redis.Cmdable, key string) ([]domain.Order, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode guest orders: %w", err)
	}
	return orders, nil
}

// mutateGuestOrders applies fn to the guest's list under WATCH, retrying when
// another writer touched the key first.
func (r *RedisAdapter) mutateGuestOrders(ctx context.Context, guestID string, fn func([]domain.Order) ([]domain.Order, error)) error {
	key := guestKey(guestID)
	txf := func(tx *redis.Tx) error {
		orders, err := readGuestOrders(ctx, tx, key)
		if err != nil {
			return err
		}
		orders, err = fn(orders)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(orders)
		if err != nil {
			return fmt.Errorf("encode guest orders: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrGuestStoreBusy
}

func (r *RedisAdapter) SaveGuestOrder(ctx context.Context, guestID string, order domain.Order) error {
	return r.mutateGuestOrders(ctx, guestID, func(orders []domain.Order) ([]domain.Order, error) {
		for i := range orders {
			if orders[i].ID == order.ID {
				orders[i] = order
				return orders, nil
			}
		}
		return append([]domain.Order{order}, orders...), nil
	})
}

func (r *RedisAdapter) ListGuestOrders(ctx context.Context, guestID string) ([]domain.Order, error) {
	return readGuestOrders(ctx, r.client, guestKey(guestID))
}

func (r *RedisAdapter) UpdateGuestOrderStatus(ctx context.Context, guestID, orderID string, status domain.OrderStatus, at time.Time) error {
	return r.mutateGuestOrders(ctx, guestID, func(orders []domain.Order) ([]domain.Order, error) {
		for i := range orders {
			if orders[i].ID == orderID {
				orders[i].Status = status
				orders[i].UpdatedAt = at
				return orders, nil
			}
		}
		return nil, port.ErrNotFound
	})
}

func (r *RedisAdapter) ClearCompletedGuestOrders(ctx context.Context, guestID string) (int, error) {
	removed := 0
	err := r.mutateGuestOrders(ctx, guestID, func(orders []domain.Order) ([]domain.Order, error) {
		kept := make([]domain.Order, 0, len(orders))
		for _, o := range orders {
			if o.IsActive() {
				kept = append(kept, o)
			}
		}
		removed = len(orders) - len(kept)
		return kept, nil
	})
	return removed, err
}

func (r *RedisAdapter) Publish(ctx context.Context, ev port.ChangeEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return r.client.Publish(ctx, changeChannel, raw).Err()
}

// Subscribe forwards change events until ctx is done. Undecodable messages
// are skipped.
func (r *RedisAdapter) Subscribe(ctx context.Context) (<-chan port.ChangeEvent, error) {
	sub := r.client.Subscribe(ctx, changeChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", changeChannel, err)
	}

	out := make(chan port.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev port.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("skipping malformed change event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
