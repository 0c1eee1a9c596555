package payment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/dimasprab/go-order-recon/internal/kafka"
	"github.com/dimasprab/go-order-recon/internal/metrics"
	"github.com/dimasprab/go-order-recon/internal/notify"
	"github.com/dimasprab/go-order-recon/internal/orders"
	"github.com/dimasprab/go-order-recon/internal/redisx"
)

const DefaultMarker = "THANHTOAN"

// Transaction is one bank transfer record, as delivered by the webhook or
// fetched from the aggregator. Amount is in minor currency units, same as
// order totals.
type Transaction struct {
	TID         string `json:"tid"`
	Description string `json:"description"`
	Amount      int    `json:"amount"`
	When        string `json:"when,omitempty"`
}

// OrderStore is the slice of the order repository the reconciler needs
// (implemented by internal/orders.Repo).
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	FindPendingBySuffix(ctx context.Context, token string) ([]orders.Order, error)
	ConfirmPending(ctx context.Context, orderID, transactionRef string) (bool, error)
}

// TransactionSource is the external bank aggregator: read-only, fallible.
type TransactionSource interface {
	Recent(ctx context.Context) ([]Transaction, error)
}

// Reconciler matches external bank transactions to pending orders. The
// webhook path and the poll path converge on the same matcher and the same
// idempotent ConfirmPayment, so redelivery and races are safe.
type Reconciler struct {
	Store      OrderStore
	Source     TransactionSource
	Sink       notify.Sink
	Redis      *redis.Client
	Events     *kafkax.Producer // order lifecycle stream, optional
	Service    string
	Log        *zap.Logger
	tokenRegex *regexp.Regexp
}

func NewReconciler(store OrderStore, source TransactionSource, sink notify.Sink, rdb *redis.Client, marker string, log *zap.Logger) *Reconciler {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Reconciler{
		Store:      store,
		Source:     source,
		Sink:       sink,
		Redis:      rdb,
		Log:        log,
		tokenRegex: regexp.MustCompile(regexp.QuoteMeta(strings.ToUpper(marker)) + `\s*([A-Z0-9]{6})`),
	}
}

// ExtractToken pulls the 6-char order token following the payment marker out
// of a transfer description. Matches "THANHTOAN 65A2BC" and "THANHTOAN65A2BC".
func (r *Reconciler) ExtractToken(description string) (string, bool) {
	m := r.tokenRegex.FindStringSubmatch(strings.ToUpper(description))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ProcessBatch runs the webhook matching over a batch of transactions and
// returns how many orders were confirmed. "No token" and "no matching order"
// are not errors; only infrastructure failures are.
func (r *Reconciler) ProcessBatch(ctx context.Context, batch []Transaction) (int, error) {
	confirmed := 0
	for _, tx := range batch {
		token, ok := r.ExtractToken(tx.Description)
		if !ok {
			continue
		}
		if r.seenTransaction(ctx, tx.TID) {
			continue
		}

		did, err := r.reconcile(ctx, token, tx, "webhook")
		if err != nil {
			return confirmed, err
		}
		// Only a confirming transaction is marked seen. An unmatched one
		// (checkout not committed yet, ambiguous suffix) must stay eligible
		// so a later redelivery can still settle the order.
		if did {
			r.markTransaction(ctx, tx.TID)
			confirmed++
		}
	}
	return confirmed, nil
}

// Verify is the poll path: fetch recent history from the aggregator and run
// the same match for one order. An aggregator failure degrades to "no match
// found" rather than failing the request.
func (r *Reconciler) Verify(ctx context.Context, orderID string) (bool, string, error) {
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return false, "", err
	}
	if o.Status != orders.StatusPending {
		return true, "order already paid", nil
	}

	var history []Transaction
	if r.Source != nil {
		history, err = r.Source.Recent(ctx)
		if err != nil {
			r.Log.Warn("bank aggregator unavailable, treating as no match",
				zap.String("order_id", o.ID), zap.Error(err))
			history = nil
		}
	}

	token := o.Token()
	for _, tx := range history {
		t, ok := r.ExtractToken(tx.Description)
		if !ok || t != token || !covers(tx, o) {
			continue
		}
		if ok, err := r.confirm(ctx, o, tx, "poll"); err != nil {
			return false, "", err
		} else if ok {
			return true, "payment confirmed", nil
		}
		// lost the race to the webhook; still a success for the caller
		return true, "order already paid", nil
	}
	return false, "no matching bank transaction found yet", nil
}

// covers is the eligibility rule shared by the webhook and poll paths: the
// transfer must settle the full outstanding total, overpayment included.
func covers(tx Transaction, o *orders.Order) bool { return tx.Amount >= o.TotalCents }

// reconcile locates the single pending order for a token and confirms it.
// Trailing-6 tokens can collide between concurrently pending orders, so ties
// are broken by exact amount; an unresolvable tie is skipped, never guessed.
func (r *Reconciler) reconcile(ctx context.Context, token string, tx Transaction, source string) (bool, error) {
	candidates, err := r.Store.FindPendingBySuffix(ctx, token)
	if err != nil {
		return false, err
	}

	eligible := candidates[:0:0]
	for _, c := range candidates {
		if covers(tx, &c) {
			eligible = append(eligible, c)
		}
	}

	switch len(eligible) {
	case 0:
		if len(candidates) > 0 {
			r.Log.Info("pending order found but amount too low",
				zap.String("token", token), zap.Int("amount", tx.Amount))
		}
		return false, nil
	case 1:
		return r.confirm(ctx, &eligible[0], tx, source)
	}

	exact := eligible[:0:0]
	for _, c := range eligible {
		if c.TotalCents == tx.Amount {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return r.confirm(ctx, &exact[0], tx, source)
	}

	r.Log.Warn("ambiguous order token, skipping transaction",
		zap.String("token", token),
		zap.Int("amount", tx.Amount),
		zap.Int("candidates", len(eligible)))
	return false, nil
}

// confirm is the shared idempotent primitive behind both paths. Confirming
// an order that is no longer pending is a silent no-op.
func (r *Reconciler) confirm(ctx context.Context, o *orders.Order, tx Transaction, source string) (bool, error) {
	ok, err := r.Store.ConfirmPending(ctx, o.ID, tx.TID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if r.Redis != nil {
		// drop the cached projection so reads see Confirmed immediately
		_ = r.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderCache, o.ID)).Err()
	}

	metrics.PaymentsConfirmed.WithLabelValues(source).Inc()

	if r.Events != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventPaymentConfirmed,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      r.Service,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.PaymentConfirmedPayload{
				OrderID:        o.ID,
				AmountCents:    tx.Amount,
				TransactionRef: tx.TID,
				Source:         source,
			}),
		}
		r.Events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentConfirmed)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	r.Log.Info("payment confirmed",
		zap.String("order_id", o.ID),
		zap.String("source", source),
		zap.Int("amount", tx.Amount),
		zap.String("tid", tx.TID))

	title, message := orders.PaidNotification(o)
	r.Sink.Notify(o.UserID, title, message, o.ID)
	return true, nil
}

// seenTransaction dedups webhook redeliveries by bank transaction id.
// ConfirmPending already guards correctness; this only saves the re-match.
// A transaction is marked seen solely once it has confirmed an order.
func (r *Reconciler) seenTransaction(ctx context.Context, tid string) bool {
	if r.Redis == nil || tid == "" {
		return false
	}
	exists, _ := redisx.Exists(ctx, r.Redis, fmt.Sprintf(redisx.KeyDedup, "payment", tid))
	return exists
}

func (r *Reconciler) markTransaction(ctx context.Context, tid string) {
	if r.Redis == nil || tid == "" {
		return
	}
	_ = r.Redis.Set(ctx, fmt.Sprintf(redisx.KeyDedup, "payment", tid), "1", redisx.TTLDedup).Err()
}
