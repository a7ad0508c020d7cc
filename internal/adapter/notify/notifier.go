package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// Log writes the formatted order message to the logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, order domain.Order) error {
	l.logger.Info("new order",
		zap.String("order_id", order.ID),
		zap.String("order_number", OrderNumber(order.Number)),
		zap.String("message", Message(order)),
	)
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, order domain.Order) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
