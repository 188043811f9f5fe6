package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	DosesTracked         prometheus.Counter
	RemindersSent        prometheus.Counter
	StockAlerts          prometheus.Counter
	PushDeliveries       *prometheus.CounterVec
	SubscriptionsRemoved prometheus.Counter
	SchedulerCycles      *prometheus.CounterVec
	SchedulerRunning     prometheus.Gauge
}

// Delivery outcome labels for PushDeliveries.
const (
	OutcomeDelivered = "delivered"
	OutcomeTransient = "transient_failure"
	OutcomeTerminal  = "terminal_failure"
)

// New creates and registers all application metrics on the default registry.
func New(namespace string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, namespace)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so
// repeated construction never collides.
func NewWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DosesTracked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_tracked_total",
			Help:      "Total number of dose intakes logged",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of medication reminders sent",
		}),
		StockAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_alerts_total",
			Help:      "Total number of stock alerts sent",
		}),
		PushDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push delivery attempts by outcome",
		}, []string{"outcome"}),
		SubscriptionsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_removed_total",
			Help:      "Total number of dead push subscriptions pruned",
		}),
		SchedulerCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Scheduler evaluation cycles by check",
		}, []string{"check"}),
		SchedulerRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "Whether the reminder scheduler loop is running",
		}),
	}
}
