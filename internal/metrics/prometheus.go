package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "futures_sim_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	executed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_executed_total",
		Help:      "Total number of committed trades.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_rejected_total",
		Help:      "Total number of trade requests rejected before commit.",
	})
	persistFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "persistence_failures_total",
		Help:      "Total number of snapshot writes that failed and forced a rollback.",
	})
	priceFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "price_fetch_failures_total",
		Help:      "Total number of failed price fetches.",
	})

	registry.MustRegister(executed, rejected, persistFailed, priceFailed)

	return &Prometheus{
		Metrics: &Metrics{
			TradesExecuted:      promCounter{executed},
			TradesRejected:      promCounter{rejected},
			PersistenceFailures: promCounter{persistFailed},
			PriceFetchFailures:  promCounter{priceFailed},
		},
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
