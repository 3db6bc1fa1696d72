// Package notify delivers order confirmations after commit. Delivery is best
// effort: callers learn whether it worked but never fail because of it.
package notify

import (
	"context"

	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/shopspring/decimal"
)

type Confirmation struct {
	To           string          `json:"to"`
	CustomerName string          `json:"customer_name"`
	OrderNumber  string          `json:"order_number"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Lines        []string        `json:"lines"`
}

type Dispatcher interface {
	SendOrderConfirmation(ctx context.Context, c Confirmation) bool
}

// LogDispatcher records confirmations in the log when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) SendOrderConfirmation(ctx context.Context, c Confirmation) bool {
	logging.FromContext(ctx).Info("order_confirmation",
		"to", c.To,
		"order_number", c.OrderNumber,
		"total", c.TotalAmount.StringFixed(2),
		"lines", len(c.Lines),
	)
	return true
}
