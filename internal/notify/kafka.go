package notify

import (
	"context"
	"time"

	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/sony/gobreaker"
)

const EventOrderConfirmation = "order_confirmation"

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type confirmationEvent struct {
	Event      string       `json:"event"`
	OccurredAt time.Time    `json:"occurred_at"`
	Payload    Confirmation `json:"payload"`
}

// KafkaDispatcher publishes confirmations keyed by order number. A breaker
// stops hammering an unavailable broker from the checkout path.
type KafkaDispatcher struct {
	pub   Publisher
	topic string
	cb    *gobreaker.CircuitBreaker
}

func NewKafkaDispatcher(pub Publisher, topic string) *KafkaDispatcher {
	settings := gobreaker.Settings{
		Name:        "OrderConfirmations",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	}
	return &KafkaDispatcher{pub: pub, topic: topic, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (d *KafkaDispatcher) SendOrderConfirmation(ctx context.Context, c Confirmation) bool {
	event := confirmationEvent{
		Event:      EventOrderConfirmation,
		OccurredAt: time.Now().UTC(),
		Payload:    c,
	}
	_, err := d.cb.Execute(func() (any, error) {
		return nil, d.pub.PublishEvent(ctx, d.topic, c.OrderNumber, event)
	})
	if err != nil {
		logging.FromContext(ctx).Error("order_confirmation_error",
			"order_number", c.OrderNumber,
			"breaker", d.cb.State().String(),
			"error", err,
		)
		return false
	}
	return true
}
