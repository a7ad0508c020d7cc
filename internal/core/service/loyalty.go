package service

import (
	"context"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// Badge computes the loyalty badge of a user from their order history.
func (s *OrderService) Badge(ctx context.Context, userID string) (domain.Badge, error) {
	orders, err := s.ListUserOrders(ctx, userID)
	if err != nil {
		return domain.Badge{}, err
	}
	return domain.NewBadge(domain.CountPizzas(orders)), nil
}
