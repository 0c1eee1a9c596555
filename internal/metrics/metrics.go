package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "orders_created_total",
		Help:      "Orders successfully created at checkout.",
	})

	ReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "reservations_rejected_total",
		Help:      "Checkouts rejected because a line item was out of stock.",
	})

	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "payments_confirmed_total",
		Help:      "Pending orders confirmed by payment reconciliation.",
	}, []string{"source"}) // webhook | poll

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Name:      "order_status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"to"})
)
