package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dimasprab/go-order-recon/internal/orders"
)

type fakeNotificationStore struct {
	rows map[string][]orders.Notification
}

func (f *fakeNotificationStore) ListForUser(ctx context.Context, userID string) ([]orders.Notification, error) {
	return f.rows[userID], nil
}

func newNotificationsServer(store NotificationLister) *httptest.Server {
	router := NewRouter()
	nh := &NotificationsHandler{Store: store, Log: zap.NewNop()}
	nh.Register(router)
	return httptest.NewServer(router)
}

func TestListNotifications(t *testing.T) {
	store := &fakeNotificationStore{rows: map[string][]orders.Notification{
		"u1": {
			{ID: "n1", UserID: "u1", Title: "Payment received", Status: "unread", CreatedAt: time.Now().UTC()},
			{ID: "n2", UserID: "u1", Title: "Order placed", Status: "read", CreatedAt: time.Now().UTC()},
		},
	}}
	srv := newNotificationsServer(store)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notifications", nil)
	req.Header.Set("X-User-Id", "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []orders.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "unread", got[0].Status)
}

func TestListNotificationsEmpty(t *testing.T) {
	srv := newNotificationsServer(&fakeNotificationStore{rows: map[string][]orders.Notification{}})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/notifications", nil)
	req.Header.Set("X-User-Id", "u2")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []orders.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got)
}

func TestListNotificationsRequiresIdentity(t *testing.T) {
	srv := newNotificationsServer(&fakeNotificationStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
