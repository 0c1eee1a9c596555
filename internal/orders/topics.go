package orders

const (
	TopicOrderCreated = "shop.order.created"

	// Carries both OrderStatusChanged and PaymentConfirmed envelopes;
	// consumers filter on event_type.
	TopicOrderStatusChanged = "shop.order.status_changed"

	TopicNotifications = "shop.notification"
)

// Partition key = order_id so all events for one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
