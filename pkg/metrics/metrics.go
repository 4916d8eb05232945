// Package metrics provides Prometheus metrics for the oracle relayer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceUpdatesTotal is a counter of price updates written by source adapters.
	SourceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_updates_total",
			Help: "Total number of price updates received from upstream sources",
		},
		[]string{"source"},
	)

	// SourceReconnectsTotal is a counter of adapter reconnect attempts.
	SourceReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_reconnects_total",
			Help: "Total number of source connection restarts",
		},
		[]string{"source", "url"},
	)

	// SedaPollFailuresTotal is a counter of failed SEDA poll requests.
	SedaPollFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seda_poll_failures_total",
			Help: "Total number of failed SEDA poll requests",
		},
		[]string{"feed"},
	)

	// PushAttemptsTotal is a counter of oracle push attempts by outcome.
	PushAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_attempts_total",
			Help: "Total number of oracle update push attempts",
		},
		[]string{"dex", "status", "error_reason", "symbol"},
	)

	// NoOraclePriceTotal counts publish ticks skipped because no oracle price resolved.
	NoOraclePriceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "no_oracle_price_total",
			Help: "Total number of publish cycles with no valid oracle price",
		},
		[]string{"dex"},
	)

	// PushIntervalSeconds is a histogram of observed intervals between pushes.
	PushIntervalSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_interval_seconds",
			Help:    "Observed interval between oracle push cycles",
			Buckets: []float64{.25, .5, 1, 2, 2.5, 3, 5, 10, 30},
		},
		[]string{"dex"},
	)

	// LastPushedTimestamp is a gauge of the last successful push time per symbol.
	LastPushedTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "last_pushed_timestamp",
			Help: "Unix timestamp of the last successful oracle push per symbol",
		},
		[]string{"dex", "symbol"},
	)

	// UserRateLimitUsed is a gauge of cumulative request weight used by the pusher account.
	UserRateLimitUsed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "user_rate_limit_used",
			Help: "Cumulative request weight used by the pusher account",
		},
		[]string{"user"},
	)

	// UserRateLimitAllowed is a gauge of request weight allowed for the pusher account.
	UserRateLimitAllowed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "user_rate_limit_allowed",
			Help: "Request weight allowed for the pusher account",
		},
		[]string{"user"},
	)
)

// Init registers all relayer metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		SourceUpdatesTotal,
		SourceReconnectsTotal,
		SedaPollFailuresTotal,
		PushAttemptsTotal,
		NoOraclePriceTotal,
		PushIntervalSeconds,
		LastPushedTimestamp,
		UserRateLimitUsed,
		UserRateLimitAllowed,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceUpdate records a price update written by a source adapter.
func RecordSourceUpdate(source string) {
	SourceUpdatesTotal.WithLabelValues(source).Inc()
}

// RecordSourceReconnect records a source connection restart.
func RecordSourceReconnect(source, url string) {
	SourceReconnectsTotal.WithLabelValues(source, url).Inc()
}

// RecordSedaPollFailure records a failed SEDA poll request.
func RecordSedaPollFailure(feed string) {
	SedaPollFailuresTotal.WithLabelValues(feed).Inc()
}

// RecordPushAttempt records one push attempt outcome for a symbol.
func RecordPushAttempt(dex, status, errorReason, symbol string) {
	PushAttemptsTotal.WithLabelValues(dex, status, errorReason, symbol).Inc()
}

// RecordNoOraclePrice records a publish cycle with no valid oracle price.
func RecordNoOraclePrice(dex string) {
	NoOraclePriceTotal.WithLabelValues(dex).Inc()
}

// RecordPushInterval records the observed interval between push cycles.
func RecordPushInterval(dex string, interval time.Duration) {
	PushIntervalSeconds.WithLabelValues(dex).Observe(interval.Seconds())
}

// RecordLastPushed records the last successful push time for a symbol.
func RecordLastPushed(dex, symbol string, ts time.Time) {
	LastPushedTimestamp.WithLabelValues(dex, symbol).Set(float64(ts.Unix()))
}

// RecordUserRateLimit records the pusher account's venue rate-limit usage.
func RecordUserRateLimit(user string, used, allowed float64) {
	UserRateLimitUsed.WithLabelValues(user).Set(used)
	UserRateLimitAllowed.WithLabelValues(user).Set(allowed)
}
