package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dimasprab/go-order-recon/internal/orders"
	"github.com/dimasprab/go-order-recon/internal/payment"
)

type PaymentHandler struct {
	Reconciler *payment.Reconciler
	Log        *zap.Logger
}

// WebhookReq mirrors the aggregator's delivery shape:
// {"error":0,"data":[{"tid":"FT233...","description":"THANHTOAN 65A2BC","amount":200000}]}
type WebhookReq struct {
	Error int                   `json:"error"`
	Data  []payment.Transaction `json:"data"`
}

type WebhookResp struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Matched int    `json:"matched,omitempty"`
}

type VerifyReq struct {
	OrderID string `json:"order_id"`
}

type VerifyResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *PaymentHandler) Register(r *chi.Mux) {
	r.Post("/payments/webhook", h.webhook)
	r.Post("/payments/verify", h.verify)
}

// webhook always acknowledges receipt, including "nothing to process" and
// "no order matched" — otherwise the sender retry-storms. Only a genuine
// internal failure returns 500.
func (h *PaymentHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, WebhookResp{Error: 1, Message: "invalid json"})
		return
	}

	if req.Error != 0 || len(req.Data) == 0 {
		writeJSON(w, http.StatusOK, WebhookResp{Error: 0, Message: "no data to process"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	matched, err := h.Reconciler.ProcessBatch(ctx, req.Data)
	if err != nil {
		h.Log.Error("webhook processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, WebhookResp{Error: 1, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, WebhookResp{Error: 0, Message: "webhook processed", Matched: matched})
}

func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ok, message, err := h.Reconciler.Verify(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResp{Success: ok, Message: message})
}
