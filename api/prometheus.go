package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/petabite/shiptivitas-2/domain"
)

// Metrics owns the Prometheus registry served on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	updates  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shiptivity",
		Name:      "client_updates_total",
		Help:      "Client updates by reorder mode.",
	}, []string{"mode"})
	reg.MustRegister(updates)
	return &Metrics{registry: reg, updates: updates}
}

func (m *Metrics) middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "shiptivity",
		Registerer: m.registry,
	})
}

func (m *Metrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}

func (m *Metrics) observeUpdate(mode domain.Mode) {
	m.updates.WithLabelValues(string(mode)).Inc()
}
