package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// Прогоны по сетке λ
	SweepsTotal         *prometheus.CounterVec
	SweepDuration       *prometheus.HistogramVec
	LambdaFailuresTotal prometheus.Counter

	// Поиск μ
	SearchIterations *prometheus.HistogramVec
	SearchDuration   *prometheus.HistogramVec
	SearchesInFlight prometheus.Gauge

	// Кэш результатов поиска
	CacheOperationsTotal *prometheus.CounterVec

	// Размер входных графов
	GraphNodes prometheus.Histogram
	GraphEdges prometheus.Histogram

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики в глобальном реестре
func InitMetrics(namespace, subsystem string) *Metrics {
	m := NewMetrics(prometheus.DefaultRegisterer, namespace, subsystem)
	defaultMetrics = m
	return m
}

// NewMetrics создаёт метрики в указанном реестре
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sweeps_total",
				Help:      "Total number of lambda sweeps by outcome",
			},
			[]string{"outcome"},
		),

		SweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Wall clock duration of lambda sweeps",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"policy"},
		),

		LambdaFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lambda_failures_total",
				Help:      "Total number of lambda values whose mu search did not converge",
			},
		),

		SearchIterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "search_iterations",
				Help:      "Bisection iterations per mu search",
				Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 40, 50, 100},
			},
			[]string{"converged"},
		),

		SearchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "search_duration_seconds",
				Help:      "Duration of a single mu search",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"algorithm"},
		),

		SearchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "searches_in_flight",
				Help:      "Current number of mu searches being processed",
			},
		),

		CacheOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_operations_total",
				Help:      "Total number of search cache operations",
			},
			[]string{"operation", "result"},
		),

		GraphNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_nodes",
				Help:      "Number of units in partitioned graphs",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),

		GraphEdges: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges",
				Help:      "Number of adjacencies in partitioned graphs",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
			},
		),

		ServiceInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("districts", "")
	}
	return defaultMetrics
}

// RecordSweep записывает итог прогона
func (m *Metrics) RecordSweep(outcome, policy string, duration time.Duration) {
	m.SweepsTotal.WithLabelValues(outcome).Inc()
	m.SweepDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordSearch записывает метрики поиска μ для одного λ
func (m *Metrics) RecordSearch(algorithm string, converged bool, iterations int, duration time.Duration) {
	m.SearchIterations.WithLabelValues(strconv.FormatBool(converged)).Observe(float64(iterations))
	m.SearchDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	if !converged {
		m.LambdaFailuresTotal.Inc()
	}
}

// RecordCacheOperation записывает обращение к кэшу
func (m *Metrics) RecordCacheOperation(operation, result string) {
	m.CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordGraphSize записывает размер графа
func (m *Metrics) RecordGraphSize(nodes, edges int) {
	m.GraphNodes.Observe(float64(nodes))
	m.GraphEdges.Observe(float64(edges))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthCheck проверка зависимости, вызываемая на /health
type HealthCheck func(ctx context.Context) error

// NewServer создаёт HTTP сервер с /metrics и /health.
// /health отвечает 503, если не прошла хотя бы одна проверка.
func NewServer(port int, checks ...HealthCheck) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
