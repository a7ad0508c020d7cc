package service

import (
	"context"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/wizard"
)

// Checkout submits the session's cart and resets the session once the order
// is placed. An incomplete checkout form leaves the session untouched.
func Checkout(ctx context.Context, sessions *SessionStore, orders *OrderService, sessionID, requestID, userID, guestID string) (*domain.Order, error) {
	var placed *domain.Order
	err := sessions.With(sessionID, func(ws *wizard.Session) error {
		if !ws.IsReadyToSubmit() {
			return ErrNotReady
		}
		order, err := orders.Submit(ctx, SubmitRequest{
			RequestID:  requestID,
			UserID:     userID,
			GuestID:    guestID,
			Submission: ws.Submission(),
		})
		if err != nil {
			return err
		}
		ws.Complete()
		placed = order
		return nil
	})
	return placed, err
}
