package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "binary_edge_bot"

// Metrics holds the bot's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	// Market data metrics
	spotPrice        *prometheus.GaugeVec
	realizedVol      *prometheus.GaugeVec
	feedErrorsByKind *prometheus.CounterVec

	// Pricing metrics
	fairValue     *prometheus.GaugeVec
	impliedVol    *prometheus.GaugeVec
	edge          *prometheus.GaugeVec
	kellyFraction *prometheus.GaugeVec

	// Trading metrics
	decisionsTotal *prometheus.CounterVec
	orderAmount    *prometheus.HistogramVec
	bankroll       prometheus.Gauge
	breakerTrips   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		spotPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "spot_price",
				Help:      "Latest spot price of the underlying",
			},
			[]string{"symbol"},
		),
		realizedVol: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realized_volatility",
				Help:      "Annualized realized volatility of the underlying",
			},
			[]string{"symbol"},
		),
		feedErrorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by category",
			},
			[]string{"category"},
		),
		fairValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fair_value",
				Help:      "Model fair value of the YES contract",
			},
			[]string{"market"},
		),
		impliedVol: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "implied_volatility",
				Help:      "Volatility implied by the YES price",
			},
			[]string{"market"},
		),
		edge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "edge",
				Help:      "Fair value minus market price per side",
			},
			[]string{"market", "side"},
		),
		kellyFraction: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "kelly_fraction",
				Help:      "Bankroll fraction recommended for the chosen side",
			},
			[]string{"market"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of market evaluations by chosen side",
			},
			[]string{"market", "side"},
		),
		orderAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "order_amount_usd",
				Help:      "Distribution of order notionals",
				Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"market"},
		),
		bankroll: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bankroll_usd",
				Help:      "Paper portfolio balance",
			},
		),
		breakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker activations",
			},
			[]string{"breaker"},
		),
	}

	m.registry.MustRegister(
		m.spotPrice,
		m.realizedVol,
		m.feedErrorsByKind,
		m.fairValue,
		m.impliedVol,
		m.edge,
		m.kellyFraction,
		m.decisionsTotal,
		m.orderAmount,
		m.bankroll,
		m.breakerTrips,
	)

	return m
}

// Handler serves the Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// UpdatePrice updates the spot price metric
func (m *Metrics) UpdatePrice(symbol string, price float64) {
	m.spotPrice.WithLabelValues(symbol).Set(price)
}

// UpdateRealizedVolatility updates the realized volatility metric
func (m *Metrics) UpdateRealizedVolatility(symbol string, vol float64) {
	m.realizedVol.WithLabelValues(symbol).Set(vol)
}

// RecordEvaluation records the pricing outcome for a market. A nil implied
// volatility leaves the previous value in place.
func (m *Metrics) RecordEvaluation(market, side string, fairValue, yesEdge, noEdge, fraction float64, impliedVol *float64) {
	m.fairValue.WithLabelValues(market).Set(fairValue)
	m.edge.WithLabelValues(market, "YES").Set(yesEdge)
	m.edge.WithLabelValues(market, "NO").Set(noEdge)
	m.kellyFraction.WithLabelValues(market).Set(fraction)
	m.decisionsTotal.WithLabelValues(market, side).Inc()

	if impliedVol != nil {
		m.impliedVol.WithLabelValues(market).Set(*impliedVol)
	}
}

// RecordOrder records an order notional
func (m *Metrics) RecordOrder(market string, amount float64) {
	m.orderAmount.WithLabelValues(market).Observe(amount)
}

// UpdateBankroll updates the paper balance metric
func (m *Metrics) UpdateBankroll(balance float64) {
	m.bankroll.Set(balance)
}

// RecordBreakerTrip counts a circuit breaker activation
func (m *Metrics) RecordBreakerTrip(breaker string) {
	m.breakerTrips.WithLabelValues(breaker).Inc()
}

// RecordError records an error metric
func (m *Metrics) RecordError(category string) {
	m.feedErrorsByKind.WithLabelValues(category).Inc()
}
