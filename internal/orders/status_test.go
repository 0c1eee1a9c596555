package orders

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(status Status) *Order {
	return &Order{
		ID:     "6824f3a1-9c1e-4b5e-8f0a-0d2c4e65a2bc",
		UserID: "user-1",
		Items: []LineItem{
			{ProductID: "p1", Color: "Black", Size: "M", Qty: 2},
		},
		TotalCents: 200000,
		Status:     status,
	}
}

func TestDecide_OwnerRoleMatrix(t *testing.T) {
	owner := Actor{UserID: "user-1"}

	cases := []struct {
		name      string
		from      Status
		requested Status
		allowed   bool
	}{
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"shipped to delivered", StatusShipped, StatusDelivered, true},
		{"pending to confirmed", StatusPending, StatusConfirmed, false},
		{"pending to shipped", StatusPending, StatusShipped, false},
		{"pending to delivered", StatusPending, StatusDelivered, false},
		{"confirmed to shipped", StatusConfirmed, StatusShipped, false},
		{"confirmed to delivered", StatusConfirmed, StatusDelivered, false},
		{"shipped to cancelled", StatusShipped, StatusCancelled, false},
		{"delivered to cancelled", StatusDelivered, StatusCancelled, false},
		{"cancelled to pending", StatusCancelled, StatusPending, false},
		{"delivered to pending", StatusDelivered, StatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decide(testOrder(tc.from), tc.requested, owner)
			if tc.allowed {
				require.NoError(t, err)
				assert.True(t, d.Changed)
				assert.Equal(t, tc.requested, d.To)
			} else {
				require.ErrorIs(t, err, ErrIllegalTransition)
			}
		})
	}
}

func TestDecide_AdminAlwaysAllowed(t *testing.T) {
	admin := Actor{UserID: "admin-1", IsAdmin: true}

	for _, from := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
			d, err := Decide(testOrder(from), to, admin)
			require.NoError(t, err, "admin %s -> %s", from, to)
			assert.Equal(t, from != to, d.Changed)
		}
	}
}

func TestDecide_NotYourOrder(t *testing.T) {
	stranger := Actor{UserID: "someone-else"}

	_, err := Decide(testOrder(StatusPending), StatusCancelled, stranger)
	require.ErrorIs(t, err, ErrNotYourOrder)
	assert.NotErrorIs(t, err, ErrIllegalTransition,
		"ownership failures must stay distinguishable from transition failures")
}

func TestDecide_SameStatusIsNoOp(t *testing.T) {
	d, err := Decide(testOrder(StatusConfirmed), StatusConfirmed, Actor{UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, d.Changed)
	assert.False(t, d.RestoreStock)
}

func TestDecide_RestoreStockOnlyOnNewlyCancelled(t *testing.T) {
	admin := Actor{UserID: "admin-1", IsAdmin: true}

	d, err := Decide(testOrder(StatusConfirmed), StatusCancelled, admin)
	require.NoError(t, err)
	assert.True(t, d.RestoreStock)

	// cancelling an already-cancelled order must not restore again
	d, err = Decide(testOrder(StatusCancelled), StatusCancelled, admin)
	require.NoError(t, err)
	assert.False(t, d.Changed)
	assert.False(t, d.RestoreStock)
}

func TestDecide_ShippedNeedsTracking(t *testing.T) {
	admin := Actor{UserID: "admin-1", IsAdmin: true}

	o := testOrder(StatusConfirmed)
	d, err := Decide(o, StatusShipped, admin)
	require.NoError(t, err)
	assert.True(t, d.NeedsTracking)

	o.TrackingNumber = "TRKDEADBEEF"
	d, err = Decide(o, StatusShipped, admin)
	require.NoError(t, err)
	assert.False(t, d.NeedsTracking)
}

func TestDecide_UnknownStatus(t *testing.T) {
	_, err := Decide(testOrder(StatusPending), Status(9), Actor{UserID: "admin-1", IsAdmin: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func TestNewTrackingNumber(t *testing.T) {
	re := regexp.MustCompile(`^TRK[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		tn := NewTrackingNumber()
		assert.Regexp(t, re, tn)
		seen[tn] = true
	}
	assert.Greater(t, len(seen), 1, "tracking numbers should not repeat")
}

func TestShortRef(t *testing.T) {
	assert.Equal(t, "65A2BC", ShortRef("6824f3a1-9c1e-4b5e-8f0a-0d2c4e65a2bc"))
	assert.Equal(t, "ABC", ShortRef("abc"))
}

func TestStatusNotificationTemplates(t *testing.T) {
	o := testOrder(StatusShipped)
	o.TrackingNumber = "TRK12AB34CD"

	title, message, ok := StatusNotification(o, StatusShipped)
	require.True(t, ok)
	assert.Equal(t, "Order shipped", title)
	assert.Contains(t, message, "TRK12AB34CD", "shipped message carries the tracking number")
	assert.Contains(t, message, "#65A2BC")

	for _, to := range []Status{StatusConfirmed, StatusDelivered, StatusCancelled} {
		title, message, ok := StatusNotification(o, to)
		require.True(t, ok, "status %s", to)
		assert.NotEmpty(t, title)
		assert.Contains(t, message, "#65A2BC")
	}

	_, _, ok = StatusNotification(o, StatusPending)
	assert.False(t, ok, "entering Pending never notifies")

	titles := map[string]bool{}
	for _, to := range []Status{StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		title, _, _ := StatusNotification(o, to)
		titles[title] = true
	}
	assert.Len(t, titles, 4, "each status has a distinct title")
}

func TestPaidNotification(t *testing.T) {
	title, message := PaidNotification(testOrder(StatusPending))
	assert.Equal(t, "Payment received", title)
	assert.True(t, strings.Contains(message, "#65A2BC"))
}
