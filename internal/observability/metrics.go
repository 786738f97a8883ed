// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moneymachine"

// Metrics holds all Prometheus metrics for the application. Created once
// in main and threaded through options; a nil *Metrics is a no-op for
// every helper so tests can skip it.
type Metrics struct {
	// Ingestion
	TransfersIngested  *prometheus.CounterVec // by chain
	TransferDuplicates prometheus.Counter
	WalletsPolled      prometheus.Counter
	PollFailures       prometheus.Counter

	// Trading
	TradesOpened  *prometheus.CounterVec // by strategy
	TradesClosed  *prometheus.CounterVec // by strategy, reason
	TradesReduced *prometheus.CounterVec // by strategy
	OpenTrades    prometheus.Gauge
	CapitalTotal  prometheus.Gauge
	CapitalFree   prometheus.Gauge
	EquityUSD     prometheus.Gauge

	// Pricing
	OracleCacheSize prometheus.Gauge

	// Discovery
	DiscoveryCandidates prometheus.Counter

	// Providers and jobs
	ProviderUp *prometheus.GaugeVec   // by provider
	JobRuns    *prometheus.CounterVec // by job
	JobErrors  *prometheus.CounterVec // by job

	// HTTP boundary
	HTTPRequests *prometheus.CounterVec // by route, code

	registry *prometheus.Registry
}

// NewMetrics creates and registers all application metrics on a private
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		TransfersIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_ingested_total",
			Help:      "Token transfers stored, by chain.",
		}, []string{"chain"}),
		TransferDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_duplicates_total",
			Help:      "Transfers skipped as already stored.",
		}),
		WalletsPolled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallets_polled_total",
			Help:      "Wallet polls attempted across ingest ticks.",
		}),
		PollFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Wallet polls that failed for one tick.",
		}),

		TradesOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_opened_total",
			Help:      "Paper trades opened, by strategy.",
		}, []string{"strategy"}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Paper trades closed, by strategy and exit reason.",
		}, []string{"strategy", "reason"}),
		TradesReduced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_reduced_total",
			Help:      "Partial exits executed, by strategy.",
		}, []string{"strategy"}),
		OpenTrades: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_trades",
			Help:      "Open paper positions.",
		}),
		CapitalTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capital_total_usd",
			Help:      "Total virtual capital.",
		}),
		CapitalFree: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capital_available_usd",
			Help:      "Capital not committed to open positions.",
		}),
		EquityUSD: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equity_usd",
			Help:      "Mark-to-market equity from the last manage pass.",
		}),

		OracleCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_cache_entries",
			Help:      "Entries in the price oracle cache.",
		}),

		DiscoveryCandidates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_candidates_total",
			Help:      "Candidate wallets inserted by discovery.",
		}),

		ProviderUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_up",
			Help:      "1 when the provider's last probe succeeded.",
		}, []string{"provider"}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions, by job.",
		}, []string{"job"}),
		JobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_errors_total",
			Help:      "Scheduled job failures, by job.",
		}, []string{"job"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Boundary API requests, by route and status code.",
		}, []string{"route", "code"}),

		registry: registry,
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveIngest folds one ingest tick's counters. Nil-safe.
func (m *Metrics) ObserveIngest(byChain map[string]int, duplicates, polled, failed int) {
	if m == nil {
		return
	}
	for chain, n := range byChain {
		m.TransfersIngested.WithLabelValues(chain).Add(float64(n))
	}
	m.TransferDuplicates.Add(float64(duplicates))
	m.WalletsPolled.Add(float64(polled))
	m.PollFailures.Add(float64(failed))
}

// ObserveJob records one job run. Nil-safe.
func (m *Metrics) ObserveJob(name string, failed bool) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(name).Inc()
	if failed {
		m.JobErrors.WithLabelValues(name).Inc()
	}
}
