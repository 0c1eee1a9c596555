package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dimasprab/go-order-recon/internal/orders"
)

// NotificationLister is the read side of the notification store
// (implemented by internal/notify.Repo).
type NotificationLister interface {
	ListForUser(ctx context.Context, userID string) ([]orders.Notification, error)
}

type NotificationsHandler struct {
	Store NotificationLister
	Log   *zap.Logger
}

func (h *NotificationsHandler) Register(r *chi.Mux) {
	r.Get("/notifications", h.list)
}

func (h *NotificationsHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.UserID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Store.ListForUser(ctx, actor.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []orders.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}
