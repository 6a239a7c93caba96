package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guess-reward-backend/internal/models"
)

// Metrics holds the application collectors on a private registry. It is an
// event sink: game and reward counters are driven by committed events.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	gamesPlayed   *prometheus.CounterVec
	rewardsPaid   prometheus.Counter
	rewardClaims  *prometheus.CounterVec
	poolExhausted prometheus.Counter
	transfers     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "guess",
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guess",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "guess",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),

		gamesPlayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guess",
				Name:      "games_played_total",
				Help:      "Total number of rounds played, by outcome tier.",
			},
			[]string{"outcome"},
		),
		rewardsPaid: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "guess",
				Name:      "rewards_paid_tokens_total",
				Help:      "Whole tokens paid out to winning players.",
			},
		),
		rewardClaims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guess",
				Name:      "reward_claims_total",
				Help:      "Total number of distributor claims, by category.",
			},
			[]string{"category"},
		),
		poolExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "guess",
				Name:      "reward_pool_exhausted_total",
				Help:      "Plays or claims rejected because the reward pool could not pay.",
			},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "guess",
				Subsystem: "ledger",
				Name:      "transfers_total",
				Help:      "Total number of ledger movements, by kind.",
			},
			[]string{"kind"},
		),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.gamesPlayed,
		m.rewardsPaid,
		m.rewardClaims,
		m.poolExhausted,
		m.transfers,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Publish(event models.Event) {
	switch event.Type {
	case models.EventGamePlayed:
		m.gamesPlayed.WithLabelValues(event.Attributes["tier"]).Inc()
	case models.EventPlayerWon:
		if tokens, ok := tokenAmount(event.Amounts["reward"]); ok {
			m.rewardsPaid.Add(tokens)
		}
	case models.EventRewardDistributed:
		m.rewardClaims.WithLabelValues(event.Attributes["category"]).Inc()
	case models.EventTransfer:
		m.transfers.WithLabelValues(event.Attributes["kind"]).Inc()
	}
}

// PoolExhausted counts a rejected payout. Failed calls emit no event, so the
// HTTP layer reports these directly.
func (m *Metrics) PoolExhausted() {
	m.poolExhausted.Inc()
}

func tokenAmount(raw string) (float64, bool) {
	amount, err := models.ParseAmount(raw)
	if err != nil {
		return 0, false
	}
	tokens, err := strconv.ParseFloat(models.FormatTokens(amount), 64)
	if err != nil {
		return 0, false
	}
	return tokens, true
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
