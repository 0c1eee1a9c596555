package notify

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/orders"
)

// Sink receives discrete "notify user" events. Emission is fire-and-forget:
// a failed notification never unwinds the transition that triggered it.
type Sink interface {
	Notify(userID, title, message, orderID string)
}

// KafkaSink publishes NotifyUser events to the notification topic; the
// notifier process consumes and persists them.
type KafkaSink struct {
	Producer *kafkax.Producer
	Service  string
	Log      *zap.Logger
}

func (s *KafkaSink) Notify(userID, title, message, orderID string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventNotifyUser,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.NotifyUserPayload{
			UserID:  userID,
			Title:   title,
			Message: message,
			OrderID: orderID,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventNotifyUser)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	s.Log.Info("notification emitted",
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.String("title", title),
	)
}

// NopSink drops notifications; used in tests and when kafka is disabled.
type NopSink struct{}

func (NopSink) Notify(string, string, string, string) {}
