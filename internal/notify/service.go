package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/orders"
	"github.com/dimasprab/go-order-recon/internal/redisx"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, n *orders.Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, title, message, order_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.UserID, n.Title, n.Message, n.OrderID, n.Status, n.CreatedAt,
	)
	return err
}

func (r *Repo) ListForUser(ctx context.Context, userID string) ([]orders.Notification, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, title, message, order_id, status, created_at
		FROM notifications WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Notification
	for rows.Next() {
		var n orders.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.OrderID, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Store persists notification rows (implemented by Repo).
type Store interface {
	Insert(ctx context.Context, n *orders.Notification) error
}

// Service is the consumer-side handler: it turns NotifyUser events into
// persisted notification rows. Anything past persistence (push, email) is a
// different system.
type Service struct {
	Repo  Store
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleNotifyUser is mounted as the kafka consumer handler.
func (s *Service) HandleNotifyUser(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventNotifyUser {
		return nil // ignore
	}

	// Dedup by event_id so consumer-group rebalances don't duplicate rows.
	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
		exists, _ := redisx.Exists(ctx, s.Redis, dkey)
		if exists {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	p, err := kafkax.UnwrapPayload[orders.NotifyUserPayload](env.Payload)
	if err != nil {
		return err
	}

	n := &orders.Notification{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Title:     p.Title,
		Message:   p.Message,
		OrderID:   p.OrderID,
		Status:    "unread",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Insert(ctx, n); err != nil {
		return err
	}

	s.Log.Info("notification stored",
		zap.String("user_id", n.UserID),
		zap.String("order_id", n.OrderID),
		zap.String("title", n.Title),
	)
	return nil
}
