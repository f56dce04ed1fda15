package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Settlement counts the business events of the settlement pipeline.
type Settlement struct {
	ordersCreated      prometheus.Counter
	paymentsIssued     *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	inventoryDegraded  prometheus.Counter
	paidAfterFailure   prometheus.Counter
	notificationsSent  *prometheus.CounterVec
	pushTokensRejected prometheus.Counter
}

// NewSettlement registers the settlement collectors on reg. A nil registerer
// yields a recorder whose methods do nothing.
func NewSettlement(reg prometheus.Registerer) *Settlement {
	if reg == nil {
		return &Settlement{}
	}
	s := &Settlement{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted by checkout.",
		}),
		paymentsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_issued_total",
			Help:      "Payment handle requests by mode and whether an existing handle was reused.",
		}, []string{"mode", "reused"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Provider webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		inventoryDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_degraded_total",
			Help:      "Paid orders whose inventory ledger application failed.",
		}),
		paidAfterFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_after_failure_total",
			Help:      "Successful payments reported for orders already marked failed.",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Seller notifications by channel and result.",
		}, []string{"channel", "result"}),
		pushTokensRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_pruned_total",
			Help:      "Push destinations deleted after a permanent provider rejection.",
		}),
	}
	reg.MustRegister(s.ordersCreated, s.paymentsIssued, s.webhookEvents, s.inventoryDegraded, s.paidAfterFailure, s.notificationsSent, s.pushTokensRejected)
	return s
}

func (s *Settlement) OrderCreated() {
	if s == nil || s.ordersCreated == nil {
		return
	}
	s.ordersCreated.Inc()
}

func (s *Settlement) PaymentIssued(mode string, reused bool) {
	if s == nil || s.paymentsIssued == nil {
		return
	}
	label := "false"
	if reused {
		label = "true"
	}
	s.paymentsIssued.WithLabelValues(normalizeLabel(mode), label).Inc()
}

func (s *Settlement) WebhookEvent(kind, outcome string) {
	if s == nil || s.webhookEvents == nil {
		return
	}
	s.webhookEvents.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (s *Settlement) InventoryDegraded() {
	if s == nil || s.inventoryDegraded == nil {
		return
	}
	s.inventoryDegraded.Inc()
}

func (s *Settlement) PaymentAfterFailure() {
	if s == nil || s.paidAfterFailure == nil {
		return
	}
	s.paidAfterFailure.Inc()
}

// Notification records one delivery attempt; channel is inbox or push.
func (s *Settlement) Notification(channel, result string) {
	if s == nil || s.notificationsSent == nil {
		return
	}
	s.notificationsSent.WithLabelValues(normalizeLabel(channel), normalizeLabel(result)).Inc()
}

func (s *Settlement) PushTokensPruned(n int) {
	if s == nil || s.pushTokensRejected == nil || n <= 0 {
		return
	}
	s.pushTokensRejected.Add(float64(n))
}
