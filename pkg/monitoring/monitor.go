package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 测验作答结果：passed / failed / expired
	QuizAttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_total",
			Help: "Quiz attempts that reached a terminal state",
		},
		[]string{"outcome"},
	)

	// 奖励发放：badge / achievement / challenge
	RewardGrantCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_grants_total",
			Help: "Badges, achievements and challenges granted",
		},
		[]string{"kind"},
	)

	// 奖励传播中被跳过的失败步骤
	RewardFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_propagation_failures_total",
			Help: "Reward propagation steps that failed and were skipped",
		},
		[]string{"step"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Sum of point deltas written to the ledger",
		},
		[]string{"kind"},
	)

	NotificationClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_ws_clients",
			Help: "Connected notification websocket clients",
		},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "background_job_duration_seconds",
			Help:    "Duration of scheduled background jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QuizAttemptCounter,
			RewardGrantCounter,
			RewardFailureCounter,
			PointsAwarded,
			NotificationClients,
			JobDuration,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
