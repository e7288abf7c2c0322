package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Funnel metrics
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_bot_gate_decisions_total",
			Help: "Gate decisions by gate and outcome",
		},
		[]string{"gate", "outcome"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "side"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "funnel_bot_trade_notional",
			Help:    "Distribution of executed trade notionals",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"symbol"},
	)

	// Risk metrics
	circuitBreakerTripped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "funnel_bot_circuit_breaker_tripped",
			Help: "1 while the circuit breaker is tripped, 0 while armed",
		},
	)

	dailyPL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "funnel_bot_daily_pl",
			Help: "Realized profit and loss for the current trading day",
		},
	)

	drawdownPct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "funnel_bot_drawdown_pct",
			Help: "Current drawdown from peak account value, percent",
		},
	)

	liquidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_bot_liquidations_total",
			Help: "Liquidation events by trigger tier",
		},
		[]string{"trigger"},
	)

	sentimentSpend = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "funnel_bot_sentiment_spend",
			Help: "Sentiment scoring spend for the current day",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_bot_errors_total",
			Help: "Total number of errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(gateDecisionsTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeNotional)
	prometheus.MustRegister(circuitBreakerTripped)
	prometheus.MustRegister(dailyPL)
	prometheus.MustRegister(drawdownPct)
	prometheus.MustRegister(liquidationsTotal)
	prometheus.MustRegister(sentimentSpend)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordGateDecision records one gate transition
func RecordGateDecision(gate, outcome string) {
	gateDecisionsTotal.WithLabelValues(gate, outcome).Inc()
}

// RecordTrade records an executed trade
func RecordTrade(symbol, side string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeNotional.WithLabelValues(symbol).Observe(notional)
}

// UpdateBreakerState updates the circuit breaker gauge
func UpdateBreakerState(tripped bool) {
	if tripped {
		circuitBreakerTripped.Set(1)
	} else {
		circuitBreakerTripped.Set(0)
	}
}

// UpdateDailyPL updates the daily P/L gauge
func UpdateDailyPL(pl float64) {
	dailyPL.Set(pl)
}

// UpdateDrawdown updates the drawdown gauge (percent)
func UpdateDrawdown(pct float64) {
	drawdownPct.Set(pct)
}

// RecordLiquidation records a liquidation event by trigger tier
func RecordLiquidation(trigger string) {
	liquidationsTotal.WithLabelValues(trigger).Inc()
}

// UpdateSentimentSpend updates the daily sentiment budget spend gauge
func UpdateSentimentSpend(spend float64) {
	sentimentSpend.Set(spend)
}

// RecordError records an error metric
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
