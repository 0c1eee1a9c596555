package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
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

type OrdersHandler struct {
	Repo         *orders.Repo
	Sink         notify.Sink
	Events       *kafkax.Producer // shop.order.created
	StatusEvents *kafkax.Producer // shop.order.status_changed
	Redis        *redis.Client
	Service      string
	Log          *zap.Logger
}

type CheckoutReq struct {
	Address       string            `json:"address"`
	Items         []orders.LineItem `json:"items"`
	VoucherCode   string            `json:"voucher_code"`
	DiscountCents int               `json:"discount_cents"`
	ShippingCents int               `json:"shipping_cents"`
}

// Status is a pointer so an absent field is distinguishable from an explicit
// 0 (Pending); a body without it must never reset the order.
type StatusUpdateReq struct {
	Status         *int   `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.checkout)
	r.Get("/orders/my", h.listMine)
	r.Get("/orders", h.listAll)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
}

// actorFrom reads the identity resolved by the auth collaborator. The
// headers are trusted inputs (the gateway strips client-supplied values).
func actorFrom(r *http.Request) orders.Actor {
	return orders.Actor{
		UserID:  r.Header.Get("X-User-Id"),
		IsAdmin: r.Header.Get("X-User-Admin") == "true",
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, orders.ErrOutOfStock):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNotYourOrder):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "you cannot update this order"})
	case errors.Is(err, orders.ErrIllegalTransition):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "order cannot change to that status now"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Address == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address and items are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.CreateOrder(ctx, orders.CheckoutInput{
		UserID:        actor.UserID,
		Address:       req.Address,
		Items:         req.Items,
		VoucherCode:   req.VoucherCode,
		DiscountCents: req.DiscountCents,
		ShippingCents: req.ShippingCents,
	})
	if err != nil {
		if errors.Is(err, orders.ErrOutOfStock) {
			metrics.ReservationsRejected.Inc()
		}
		writeErr(w, err)
		return
	}

	metrics.OrdersCreated.Inc()
	h.cacheOrder(ctx, o)

	title, message := orders.PlacedNotification(o)
	h.Sink.Notify(o.UserID, title, message, o.ID)

	if h.Events != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderCreated,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
				OrderID:    o.ID,
				UserID:     o.UserID,
				Items:      o.Items,
				TotalCents: o.TotalCents,
			}),
		}
		h.Events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.ListOrders(ctx, actor.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin only"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.ListAllOrders(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if o, ok := h.cachedOrder(ctx, orderID); ok {
		if o.UserID != actor.UserID && !actor.IsAdmin {
			writeErr(w, orders.ErrNotYourOrder)
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if o.UserID != actor.UserID && !actor.IsAdmin {
		writeErr(w, orders.ErrNotYourOrder)
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}
	orderID := chi.URLParam(r, "id")

	var req StatusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Status == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, d, err := h.Repo.UpdateStatus(ctx, orderID, orders.Status(*req.Status), req.TrackingNumber, actor)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheOrder(ctx, o)

	if d.Changed {
		metrics.StatusTransitions.WithLabelValues(d.To.String()).Inc()
		h.Log.Info("order status changed",
			zap.String("order_id", o.ID),
			zap.String("from", d.From.String()),
			zap.String("to", d.To.String()),
			zap.Bool("stock_restored", d.RestoreStock),
		)
		if title, message, ok := orders.StatusNotification(o, d.To); ok {
			h.Sink.Notify(o.UserID, title, message, o.ID)
		}
		if h.StatusEvents != nil {
			ev := orders.Envelope{
				EventID:       uuid.NewString(),
				EventType:     orders.EventOrderStatusChanged,
				EventVersion:  1,
				OccurredAt:    time.Now().UTC(),
				Producer:      h.Service,
				TraceID:       r.Header.Get("X-Request-Id"),
				CorrelationID: o.ID,
				Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
					OrderID:        o.ID,
					From:           d.From,
					To:             d.To,
					TrackingNumber: o.TrackingNumber,
				}),
			}
			h.StatusEvents.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
				kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
				kafkago.Header{Key: "x-event-version", Value: []byte("1")},
			)
		}
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderCache, o.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err()
}

func (h *OrdersHandler) cachedOrder(ctx context.Context, orderID string) (*orders.Order, bool) {
	if h.Redis == nil {
		return nil, false
	}
	key := fmt.Sprintf(redisx.KeyOrderCache, orderID)
	s, err := h.Redis.Get(ctx, key).Result()
	if err != nil || s == "" {
		return nil, false
	}
	var o orders.Order
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return nil, false
	}
	return &o, true
}
