package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	logins        *prometheus.CounterVec
	answers       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	wsClients     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_answers_total",
			Help: "Submitted answers by correctness",
		}, []string{"correct"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_notifications_total",
			Help: "Progress notifications by delivery outcome",
		}, []string{"outcome"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trivia_leaderboard_ws_clients",
			Help: "Open leaderboard websocket connections",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.logins, m.answers, m.notifications, m.wsClients,
		collectors.NewGoCollector(),
	)
	return m
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveLogin(err error) {
	m.logins.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveAnswer(correct bool) {
	m.answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

// ObserveNotification satisfies notify.Recorder.
func (m *Metrics) ObserveNotification(err error) {
	m.notifications.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) WSConnected()    { m.wsClients.Inc() }
func (m *Metrics) WSDisconnected() { m.wsClients.Dec() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
