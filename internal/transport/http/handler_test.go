package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"matrix-quest-service/internal/app"
	"matrix-quest-service/internal/auth"
	"matrix-quest-service/internal/catalog"
	"matrix-quest-service/internal/domain"
	"matrix-quest-service/internal/infra/memory"
	"matrix-quest-service/internal/metrics"
	"matrix-quest-service/internal/notify"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	server      *httptest.Server
	leaderboard *app.Leaderboard
}

func newTestEnv(t *testing.T, webhook app.Notifier) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	creds, err := memory.NewCredentialStoreWithCost([]domain.Credential{
		{Username: "neo", Password: "redpill"},
		{Username: "trinity", Password: "whiterabbit"},
	}, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("credential store: %v", err)
	}
	store := memory.NewProgressStore()
	cat := catalog.Default()
	lb := app.NewLeaderboard(cat, store, nil)
	service := app.NewTriviaService(cat, creds, store, app.WithObserver(lb))

	h := NewHandler(Deps{
		Service:        service,
		Leaderboard:    lb,
		Tokens:         auth.NewTokenIssuer("test-secret", time.Hour),
		Webhook:        webhook,
		Metrics:        metrics.New(),
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		lb.Wait()
	})
	return &testEnv{server: srv, leaderboard: lb}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", username, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}

func TestLoginDeniedIsGeneric(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, creds := range []map[string]string{
		{"username": "neo", "password": "bluepill"},
		{"username": "cypher", "password": "steak"},
	} {
		resp, body := env.do(t, http.MethodPost, "/api/login", "", creds)
		if resp.StatusCode != http.StatusUnauthorized || body["error"] != "access denied" {
			t.Fatalf("expected generic 401, got %d %v", resp.StatusCode, body)
		}
	}

	resp, _ := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "neo"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", resp.StatusCode)
	}
}

func TestPlayFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "neo", "redpill")

	resp, q := env.do(t, http.MethodGet, "/api/question", token, nil)
	if resp.StatusCode != http.StatusOK || q["id"] != float64(1) || q["totalQuestions"] != float64(10) {
		t.Fatalf("unexpected question response %d %v", resp.StatusCode, q)
	}
	if _, leaked := q["answer"]; leaked {
		t.Fatalf("answer must never be serialized: %v", q)
	}

	resp, res := env.do(t, http.MethodPost, "/api/answer", token, map[string]string{"answer": "blue"})
	if resp.StatusCode != http.StatusOK || res["correct"] != false || res["attempts"] != float64(1) {
		t.Fatalf("unexpected wrong answer response %d %v", resp.StatusCode, res)
	}

	resp, res = env.do(t, http.MethodPost, "/api/answer", token, map[string]string{"answer": "RED "})
	if resp.StatusCode != http.StatusOK || res["correct"] != true || res["currentQuestion"] != float64(2) {
		t.Fatalf("unexpected correct answer response %d %v", resp.StatusCode, res)
	}

	resp, p := env.do(t, http.MethodGet, "/api/progress", token, nil)
	if resp.StatusCode != http.StatusOK || p["currentQuestion"] != float64(2) || p["progressPercent"] != float64(10) {
		t.Fatalf("unexpected progress %d %v", resp.StatusCode, p)
	}

	resp, lb := env.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	entries, _ := lb["entries"].([]any)
	if resp.StatusCode != http.StatusOK || len(entries) != 1 {
		t.Fatalf("unexpected leaderboard %d %v", resp.StatusCode, lb)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", resp.StatusCode)
	}
	resp, body := env.do(t, http.MethodGet, "/api/question", token, nil)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "not logged in" {
		t.Fatalf("expected 401 after logout, got %d %v", resp.StatusCode, body)
	}
}

func TestCompletedRunReportsCompletion(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "trinity", "whiterabbit")

	for _, q := range catalog.Default().Questions() {
		resp, res := env.do(t, http.MethodPost, "/api/answer", token, map[string]string{"answer": q.Answer})
		if resp.StatusCode != http.StatusOK || res["correct"] != true {
			t.Fatalf("q%d: unexpected response %d %v", q.ID, resp.StatusCode, res)
		}
	}

	_, q := env.do(t, http.MethodGet, "/api/question", token, nil)
	if q["completed"] != true {
		t.Fatalf("expected completed question view, got %v", q)
	}
	_, res := env.do(t, http.MethodPost, "/api/answer", token, map[string]string{"answer": "red"})
	if res["correct"] != false || res["completed"] != true {
		t.Fatalf("expected no-op submission after completion, got %v", res)
	}
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, token := range []string{"", "garbage"} {
		resp, body := env.do(t, http.MethodGet, "/api/progress", token, nil)
		if resp.StatusCode != http.StatusUnauthorized || body["error"] != "not logged in" {
			t.Fatalf("token %q: expected 401, got %d %v", token, resp.StatusCode, body)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.server.Client().Get(env.server.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = env.server.Client().Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `http_requests_total{endpoint="/healthz"`) {
		t.Fatalf("expected request metrics, got:\n%s", buf.String())
	}
}

type stubNotifier struct {
	got domain.Notification
	err error
}

func (s *stubNotifier) Notify(_ context.Context, n domain.Notification) error {
	s.got = n
	return s.err
}

func TestSendWebhook(t *testing.T) {
	payload := map[string]any{"username": "neo", "questionNumber": 3, "finished": false}

	t.Run("method not allowed", func(t *testing.T) {
		env := newTestEnv(t, &stubNotifier{})
		resp, _ := env.do(t, http.MethodGet, "/api/send-webhook", "", nil)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		env := newTestEnv(t, &stubNotifier{})
		resp, _ := env.do(t, http.MethodPost, "/api/send-webhook", "", map[string]any{"questionNumber": 3})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unconfigured", func(t *testing.T) {
		env := newTestEnv(t, notify.NewDiscord("", nil))
		resp, body := env.do(t, http.MethodPost, "/api/send-webhook", "", payload)
		if resp.StatusCode != http.StatusInternalServerError || body["error"] != "Webhook URL not set" {
			t.Fatalf("expected 500 unconfigured, got %d %v", resp.StatusCode, body)
		}
	})

	t.Run("delivery failure", func(t *testing.T) {
		env := newTestEnv(t, &stubNotifier{err: errors.New("discord down")})
		resp, body := env.do(t, http.MethodPost, "/api/send-webhook", "", payload)
		if resp.StatusCode != http.StatusInternalServerError || body["error"] == nil {
			t.Fatalf("expected 500 with error body, got %d %v", resp.StatusCode, body)
		}
	})

	t.Run("relayed", func(t *testing.T) {
		var relayed bool
		discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			relayed = true
			w.WriteHeader(http.StatusNoContent)
		}))
		defer discord.Close()

		env := newTestEnv(t, notify.NewDiscord(discord.URL, discord.Client()))
		resp, body := env.do(t, http.MethodPost, "/api/send-webhook", "", payload)
		if resp.StatusCode != http.StatusOK || body["success"] != true {
			t.Fatalf("expected 200 success, got %d %v", resp.StatusCode, body)
		}
		if !relayed {
			t.Fatalf("expected the webhook to be called")
		}
	})

	t.Run("payload forwarded", func(t *testing.T) {
		stub := &stubNotifier{}
		env := newTestEnv(t, stub)
		env.do(t, http.MethodPost, "/api/send-webhook", "", map[string]any{"username": "neo", "questionNumber": 10, "finished": true})
		if stub.got != (domain.Notification{Username: "neo", QuestionNumber: 10, Finished: true}) {
			t.Fatalf("unexpected forwarded notification %+v", stub.got)
		}
	})
}
