package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/question", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/question", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	m.ObserveLogin(nil)
	m.ObserveLogin(errors.New("denied"))
	m.ObserveAnswer(true)
	m.ObserveNotification(errors.New("down"))
	m.WSConnected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`http_requests_total{endpoint="/api/question",method="GET",status="200"} 2`,
		`http_requests_total{endpoint="unmatched",method="GET",status="404"} 1`,
		`trivia_logins_total{outcome="ok"} 1`,
		`trivia_logins_total{outcome="error"} 1`,
		`trivia_answers_total{correct="true"} 1`,
		`trivia_notifications_total{outcome="error"} 1`,
		`trivia_leaderboard_ws_clients 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
