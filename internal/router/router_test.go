package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/handler"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
)

type stubRecommender struct{}

func (stubRecommender) Recommend(ctx context.Context, input string) (*domain.RecommendationResult, error) {
	if logging.RequestIDFromContext(ctx) == "" {
		return nil, context.Canceled
	}
	return &domain.RecommendationResult{Subject: input, Recommendations: []domain.Recommendation{}}, nil
}

func (stubRecommender) Weights() domain.Weights { return domain.DefaultWeights }

func newTestRouter(opts Options) http.Handler {
	return Setup(handler.NewHandler(stubRecommender{}, nil), opts)
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(Options{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/recommend", `{"input":"someone"}`, http.StatusOK},
		{http.MethodGet, "/recommend", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/weights", "", http.StatusOK},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("expected upstream id, got %q", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("expected generated request id")
	}
}

func TestCORS(t *testing.T) {
	r := newTestRouter(Options{AllowedOrigins: []string{"https://cratebuddy.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/recommend", nil)
	req.Header.Set("Origin", "https://cratebuddy.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://cratebuddy.example" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(Options{RateLimitReqs: 2, RateLimitWindow: time.Minute})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(`{"input":"someone"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third request, got %d", last)
	}
}
