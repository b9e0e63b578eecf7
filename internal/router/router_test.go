package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"designsense-go/internal/config"
	"designsense-go/internal/metrics"
	"designsense-go/internal/models"
	"designsense-go/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeService struct{}

func (fakeService) ListQuestions(context.Context) ([]models.PublicQuestion, error) {
	return []models.PublicQuestion{}, nil
}

func (fakeService) ListSupplemental(context.Context) ([]models.PublicSupplemental, error) {
	return []models.PublicSupplemental{}, nil
}

func (fakeService) Submit(context.Context, models.Submission) (*services.Outcome, error) {
	return &services.Outcome{Result: models.SubmissionResult{AttemptNumber: 1}}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

const submitBody = `{"sessionId":"session-123","applicant":{"name":"Ada","email":"ada@example.com"},` +
	`"responses":[{"imageId":"1_0_homestyle","selectedScore":0}],` +
	`"choices":[{"questionNumber":9,"optionId":"B"},{"questionNumber":10,"optionId":"A"}]}`

func newTestEngine(conf config.ServerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return Setup(zap.NewNop(), conf, Deps{DesignTest: fakeService{}, DB: okPinger{}, Metrics: metrics.New()})
}

func TestRoutes(t *testing.T) {
	r := newTestEngine(config.ServerConfig{})
	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/design-test/questions", "", http.StatusOK},
		{http.MethodGet, "/api/design-test/supplemental", "", http.StatusOK},
		{http.MethodPost, "/api/design-test/sessions", "", http.StatusCreated},
		{http.MethodPost, "/api/design-test/submit", submitBody, http.StatusCreated},
		{http.MethodGet, "/api/design-test/unknown", "", http.StatusNotFound},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != c.status {
			t.Fatalf("%s %s: status=%d, want %d (%s)", c.method, c.path, w.Code, c.status, w.Body.String())
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestEngine(config.ServerConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", w.Header())
	}
}

func TestCORS(t *testing.T) {
	restricted := newTestEngine(config.ServerConfig{AllowedOrigins: []string{"https://minkowski.example"}})
	open := newTestEngine(config.ServerConfig{})

	cases := []struct {
		name   string
		r      *gin.Engine
		origin string
		want   string
	}{
		{"allowed origin", restricted, "https://minkowski.example", "https://minkowski.example"},
		{"other origin", restricted, "https://evil.example", ""},
		{"any origin when unset", open, "https://anywhere.example", "https://anywhere.example"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/design-test/submit", nil)
			req.Header.Set("Origin", c.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			c.r.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != c.want {
				t.Fatalf("Access-Control-Allow-Origin=%q, want %q", got, c.want)
			}
		})
	}
}

func TestSubmitRateLimit(t *testing.T) {
	r := newTestEngine(config.ServerConfig{SubmitRateLimit: 2, SubmitRateWindow: time.Hour})
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/design-test/submit", strings.NewReader(submitBody))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third submit status=%d, want 429", last)
	}
}

func TestBodyLimit(t *testing.T) {
	r := newTestEngine(config.ServerConfig{MaxBodyBytes: 64})
	req := httptest.NewRequest(http.MethodPost, "/api/design-test/submit", strings.NewReader(submitBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want 413", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestEngine(config.ServerConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(w.Header().Get("X-Request-ID")) == 0 {
		t.Fatal("missing generated X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID=%q, want echoed value", got)
	}
}
