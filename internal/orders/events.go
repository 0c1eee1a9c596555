package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentConfirmed   = "PaymentConfirmed"
	EventNotifyUser         = "NotifyUser"
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // one of the consts above
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"` // RFC3339
	Producer      string          `json:"producer"`    // e.g. "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type OrderCreatedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id"`
	Items      []LineItem `json:"items"`
	TotalCents int        `json:"total_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	From           Status `json:"from"`
	To             Status `json:"to"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type PaymentConfirmedPayload struct {
	OrderID        string `json:"order_id"`
	AmountCents    int    `json:"amount_cents"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	Source         string `json:"source"` // webhook | poll
}

// NotifyUserPayload is the discrete "notify user" event handed to the
// notification sink; the delivery channel itself is out of scope here.
type NotifyUserPayload struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}
