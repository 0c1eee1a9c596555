package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

type Status int

const (
	StatusPending   Status = 0
	StatusConfirmed Status = 1
	StatusShipped   Status = 2
	StatusDelivered Status = 3
	StatusCancelled Status = 4
)

func (s Status) Valid() bool { return s >= StatusPending && s <= StatusCancelled }

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusShipped:
		return "SHIPPED"
	case StatusDelivered:
		return "DELIVERED"
	case StatusCancelled:
		return "CANCELLED"
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// Actor is the identity resolved by the auth collaborator; treated as a
// trusted input to the transition table.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// ownerNext: transitions a non-admin owner may request.
// Everything else is admin-only.
var ownerNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCancelled: true},
	StatusConfirmed: {StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
}

// Decision is the outcome of evaluating a requested transition against the
// table. Side effects (stock restore, tracking synthesis, notification) are
// carried as flags so the caller can apply them under its own transaction.
type Decision struct {
	From          Status
	To            Status
	Changed       bool
	RestoreStock  bool
	NeedsTracking bool
}

// Decide evaluates (current, requested, actor) against the transition rules.
//
// Admins may set any status; owners only {Pending,Confirmed}->Cancelled and
// Shipped->Delivered. A request that does not change the status is an
// allowed no-op (Changed=false) and carries no side effects.
func Decide(o *Order, requested Status, actor Actor) (Decision, error) {
	if !requested.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown status %d", ErrIllegalTransition, int(requested))
	}

	d := Decision{From: o.Status, To: requested}

	if !actor.IsAdmin {
		if o.UserID != actor.UserID {
			return Decision{}, ErrNotYourOrder
		}
		if requested != o.Status && !ownerNext[o.Status][requested] {
			return Decision{}, fmt.Errorf("%w: %s -> %s not allowed for owner",
				ErrIllegalTransition, o.Status, requested)
		}
	}

	if requested == o.Status {
		return d, nil
	}

	d.Changed = true
	d.RestoreStock = requested == StatusCancelled && o.Status != StatusCancelled
	d.NeedsTracking = requested == StatusShipped && o.TrackingNumber == ""
	return d, nil
}

// NewTrackingNumber synthesizes a vendor-neutral shipment identifier, used
// when an admin ships an order without supplying one.
func NewTrackingNumber() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "TRK" + strings.ToUpper(hex.EncodeToString(b))
}

// ShortRef is the trailing-6 uppercased order reference shown to users and
// matched against bank transfer descriptions.
func ShortRef(orderID string) string {
	s := strings.ToUpper(orderID)
	if len(s) <= 6 {
		return s
	}
	return s[len(s)-6:]
}

// StatusNotification builds the title/message pair emitted when an order
// enters the given status. Returns ok=false for statuses that do not notify.
func StatusNotification(o *Order, to Status) (title, message string, ok bool) {
	ref := ShortRef(o.ID)
	switch to {
	case StatusConfirmed:
		return "Payment confirmed",
			fmt.Sprintf("Order #%s has been confirmed and is being prepared.", ref), true
	case StatusShipped:
		return "Order shipped",
			fmt.Sprintf("Order #%s has been handed to the carrier. Tracking number: %s", ref, o.TrackingNumber), true
	case StatusDelivered:
		return "Order delivered",
			fmt.Sprintf("Order #%s was delivered. Thank you for shopping with us!", ref), true
	case StatusCancelled:
		return "Order cancelled",
			fmt.Sprintf("Order #%s has been cancelled.", ref), true
	}
	return "", "", false
}

// PlacedNotification is emitted right after checkout.
func PlacedNotification(o *Order) (title, message string) {
	return "Order placed", fmt.Sprintf("Order #%s has been received.", ShortRef(o.ID))
}

// PaidNotification is emitted when a bank transaction is reconciled against
// a pending order.
func PaidNotification(o *Order) (title, message string) {
	return "Payment received",
		fmt.Sprintf("Payment for order #%s has been received. We will ship it soon!", ShortRef(o.ID))
}
