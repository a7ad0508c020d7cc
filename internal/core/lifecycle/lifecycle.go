// Package lifecycle implements forward-only status progression of a placed
// order. The delivering/ready branch is fixed by the order's delivery type.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

var (
	ErrUnknownStatus = errors.New("unknown status")
	ErrWrongBranch   = errors.New("status not on this order's path")
	ErrRegression    = errors.New("status would move backwards")
	ErrSkip          = errors.New("status would skip a step")
)

var (
	deliveryPath = []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusDelivering,
		domain.OrderStatusCompleted,
	}
	pickupPath = []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusCompleted,
	}
)

// Path returns the ordered statuses an order of type t goes through.
func Path(t domain.DeliveryType) []domain.OrderStatus {
	if t == domain.DeliveryTypeDelivery {
		return append([]domain.OrderStatus(nil), deliveryPath...)
	}
	return append([]domain.OrderStatus(nil), pickupPath...)
}

func position(s domain.OrderStatus, t domain.DeliveryType) int {
	for i, st := range Path(t) {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the status after s, false when s is terminal or off-path.
func Next(s domain.OrderStatus, t domain.DeliveryType) (domain.OrderStatus, bool) {
	path := Path(t)
	i := position(s, t)
	if i < 0 || i == len(path)-1 {
		return "", false
	}
	return path[i+1], true
}

// CheckAdvance validates a move from one status to the next on t's path.
func CheckAdvance(from, to domain.OrderStatus, t domain.DeliveryType) error {
	if _, ok := domain.ParseStatus(string(to)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	i, j := position(from, t), position(to, t)
	if i < 0 || j < 0 {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrWrongBranch, from, to, t)
	}
	if j <= i {
		return fmt.Errorf("%w: %s -> %s", ErrRegression, from, to)
	}
	if j > i+1 {
		return fmt.Errorf("%w: %s -> %s", ErrSkip, from, to)
	}
	return nil
}

func CanAdvance(from, to domain.OrderStatus, t domain.DeliveryType) bool {
	return CheckAdvance(from, to, t) == nil
}

// Advance moves o to status to if that is the next step on its path.
func Advance(o *domain.Order, to domain.OrderStatus, now time.Time) error {
	if err := CheckAdvance(o.Status, to, o.DeliveryType); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// IsSubsequence reports whether observed statuses form an in-order
// subsequence of t's path without repeats.
func IsSubsequence(observed []domain.OrderStatus, t domain.DeliveryType) bool {
	last := -1
	for _, s := range observed {
		i := position(s, t)
		if i <= last {
			return false
		}
		last = i
	}
	return true
}
