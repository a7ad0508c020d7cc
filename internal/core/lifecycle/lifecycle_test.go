package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

func TestPath(t *testing.T) {
	assert.Equal(t, []domain.OrderStatus{"confirmed", "preparing", "delivering", "completed"}, Path(domain.DeliveryTypeDelivery))
	assert.Equal(t, []domain.OrderStatus{"confirmed", "preparing", "ready", "completed"}, Path(domain.DeliveryTypePickup))
}

func TestNext(t *testing.T) {
	next, ok := Next(domain.OrderStatusPreparing, domain.DeliveryTypeDelivery)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusDelivering, next)

	next, ok = Next(domain.OrderStatusPreparing, domain.DeliveryTypePickup)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusReady, next)

	_, ok = Next(domain.OrderStatusCompleted, domain.DeliveryTypePickup)
	assert.False(t, ok)
	_, ok = Next(domain.OrderStatusDelivering, domain.DeliveryTypePickup)
	assert.False(t, ok)
}

func TestCheckAdvance(t *testing.T) {
	tests := []struct {
		name     string
		from, to domain.OrderStatus
		dt       domain.DeliveryType
		want     error
	}{
		{"step", "confirmed", "preparing", domain.DeliveryTypeDelivery, nil},
		{"branch delivery", "preparing", "delivering", domain.DeliveryTypeDelivery, nil},
		{"branch pickup", "preparing", "ready", domain.DeliveryTypePickup, nil},
		{"wrong branch", "preparing", "ready", domain.DeliveryTypeDelivery, ErrWrongBranch},
		{"regression", "preparing", "confirmed", domain.DeliveryTypePickup, ErrRegression},
		{"same", "preparing", "preparing", domain.DeliveryTypePickup, ErrRegression},
		{"skip", "confirmed", "completed", domain.DeliveryTypePickup, ErrSkip},
		{"unknown", "confirmed", "lost", domain.DeliveryTypePickup, ErrUnknownStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAdvance(tt.from, tt.to, tt.dt)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAdvance_WalksWholePath(t *testing.T) {
	for _, dt := range []domain.DeliveryType{domain.DeliveryTypeDelivery, domain.DeliveryTypePickup} {
		o := &domain.Order{Status: domain.OrderStatusConfirmed, DeliveryType: dt}
		observed := []domain.OrderStatus{o.Status}
		for {
			next, ok := Next(o.Status, dt)
			if !ok {
				break
			}
			require.NoError(t, Advance(o, next, time.Now()))
			observed = append(observed, o.Status)
		}
		assert.Equal(t, Path(dt), observed)
		assert.True(t, IsSubsequence(observed, dt))
	}
}

func TestAdvance_RejectedLeavesOrderUntouched(t *testing.T) {
	o := &domain.Order{Status: domain.OrderStatusReady, DeliveryType: domain.DeliveryTypePickup}
	err := Advance(o, domain.OrderStatusPreparing, time.Now())
	assert.ErrorIs(t, err, ErrRegression)
	assert.Equal(t, domain.OrderStatusReady, o.Status)
	assert.True(t, o.UpdatedAt.IsZero())
}

func TestIsSubsequence(t *testing.T) {
	assert.True(t, IsSubsequence([]domain.OrderStatus{"confirmed", "delivering", "completed"}, domain.DeliveryTypeDelivery))
	assert.False(t, IsSubsequence([]domain.OrderStatus{"confirmed", "ready"}, domain.DeliveryTypeDelivery))
	assert.False(t, IsSubsequence([]domain.OrderStatus{"preparing", "confirmed"}, domain.DeliveryTypePickup))
	assert.False(t, IsSubsequence([]domain.OrderStatus{"preparing", "preparing"}, domain.DeliveryTypePickup))
}
