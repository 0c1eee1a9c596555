package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/orders"
)

type mockRepo struct {
	mu   sync.Mutex
	rows []orders.Notification
}

func (m *mockRepo) Insert(ctx context.Context, n *orders.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *n)
	return nil
}

func envelopeMessage(t *testing.T, eventType string, p orders.NotifyUserPayload) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      kafkax.MustMarshal(p),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleNotifyUser_PersistsRow(t *testing.T) {
	repo := &mockRepo{}
	svc := &Service{Repo: repo, Log: zap.NewNop()}

	msg := envelopeMessage(t, orders.EventNotifyUser, orders.NotifyUserPayload{
		UserID:  "user-1",
		Title:   "Payment received",
		Message: "Payment for order #65A2BC has been received. We will ship it soon!",
		OrderID: "order-1",
	})

	require.NoError(t, svc.HandleNotifyUser(context.Background(), msg))
	require.Len(t, repo.rows, 1)

	n := repo.rows[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, "Payment received", n.Title)
	assert.Equal(t, "order-1", n.OrderID)
	assert.Equal(t, "unread", n.Status)
	assert.NotEmpty(t, n.ID)
}

func TestHandleNotifyUser_IgnoresOtherEventTypes(t *testing.T) {
	repo := &mockRepo{}
	svc := &Service{Repo: repo, Log: zap.NewNop()}

	msg := envelopeMessage(t, orders.EventOrderCreated, orders.NotifyUserPayload{UserID: "user-1"})
	require.NoError(t, svc.HandleNotifyUser(context.Background(), msg))
	assert.Empty(t, repo.rows)
}

func TestHandleNotifyUser_MalformedEnvelope(t *testing.T) {
	svc := &Service{Repo: &mockRepo{}, Log: zap.NewNop()}
	err := svc.HandleNotifyUser(context.Background(), kafkago.Message{Value: []byte("not json")})
	require.Error(t, err, "malformed input must not be committed")
}
