package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/model"
	"github.com/goccy/go-json"
)

type stubRecommender struct {
	result *domain.RecommendationResult
	err    error
	calls  int
	input  string
}

func (s *stubRecommender) Recommend(_ context.Context, input string) (*domain.RecommendationResult, error) {
	s.calls++
	s.input = input
	return s.result, s.err
}

func (s *stubRecommender) Weights() domain.Weights {
	return domain.DefaultWeights
}

func postRecommend(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Recommend(rec, req)
	return rec
}

func TestRecommendSuccess(t *testing.T) {
	total := 0.7
	stub := &stubRecommender{result: &domain.RecommendationResult{
		Subject: "someone",
		Recommendations: []domain.Recommendation{{
			Title:      "Shared",
			URL:        "https://c.bandcamp.com/album/shared",
			Breakdown:  &domain.Breakdown{Copurchase: 1, Tags: 1},
			TotalScore: &total,
		}},
	}}
	h := NewHandler(stub, nil)

	rec := postRecommend(h, `{"input": "  someone "}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.input != "someone" {
		t.Errorf("expected trimmed input, got %q", stub.input)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %s", ct)
	}

	var resp domain.RecommendationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].Title != "Shared" {
		t.Errorf("unexpected recommendations %+v", resp.Recommendations)
	}
	if resp.Weights == nil || resp.Weights.Copurchase != 0.6 {
		t.Errorf("expected weights in envelope, got %+v", resp.Weights)
	}
}

func TestRecommendMetadata(t *testing.T) {
	tests := []struct {
		name     string
		cacheHit bool
	}{
		{"fresh", false},
		{"cached", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := 0.6
			stub := &stubRecommender{result: &domain.RecommendationResult{
				Subject:  "someone",
				CacheHit: tt.cacheHit,
				Recommendations: []domain.Recommendation{{
					URL:        "https://c.bandcamp.com/album/shared",
					Breakdown:  &domain.Breakdown{Copurchase: 1},
					TotalScore: &total,
				}},
			}}
			rec := postRecommend(NewHandler(stub, nil), `{"input": "https://bandcamp.com/someone"}`)

			var resp domain.RecommendationResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Metadata == nil {
				t.Fatal("expected metadata")
			}
			if resp.Metadata.Subject != "someone" {
				t.Errorf("expected normalised subject, got %q", resp.Metadata.Subject)
			}
			if resp.Metadata.CacheHit != tt.cacheHit {
				t.Errorf("expected cache_hit %v, got %v", tt.cacheHit, resp.Metadata.CacheHit)
			}
			if resp.Metadata.TotalCount != 1 || resp.Metadata.GeneratedAt == "" {
				t.Errorf("unexpected metadata %+v", resp.Metadata)
			}
		})
	}
}

func TestRecommendEmptyList(t *testing.T) {
	stub := &stubRecommender{result: &domain.RecommendationResult{Subject: "lonely"}}
	h := NewHandler(stub, nil)

	rec := postRecommend(h, `{"input": "lonely"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestRecommendEmptyInput(t *testing.T) {
	for _, body := range []string{`{"input": ""}`, `{"input": "   "}`, `{}`} {
		stub := &stubRecommender{}
		h := NewHandler(stub, nil)

		rec := postRecommend(h, body)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
		if stub.calls != 0 {
			t.Errorf("%s: service must not be called", body)
		}
	}
}

func TestRecommendInvalidJSON(t *testing.T) {
	stub := &stubRecommender{}
	rec := postRecommend(NewHandler(stub, nil), `{"input":`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if stub.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestRecommendErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantCode   string
	}{
		{"not found", fmt.Errorf("%w: user page not reachable: 404", domain.ErrSubjectNotFound), http.StatusNotFound, "subject not found", "subject_not_found"},
		{"malformed", domain.ErrInvalidInput, http.StatusUnprocessableEntity, domain.ErrInvalidInput.Error(), "invalid_input"},
		{"upstream", fmt.Errorf("%w: circuit open", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "Bandcamp is temporarily unavailable, please try again", "upstream_unavailable"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "Request timed out, please try again", "request_timeout"},
		{"scoring", &model.ScoringError{Msg: "bad"}, http.StatusInternalServerError, "Recommendation scores failed validation", "internal_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "An unexpected error occurred", "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubRecommender{err: tt.err}, nil)
			rec := postRecommend(h, `{"input": "someone"}`)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp.Error)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestWeights(t *testing.T) {
	h := NewHandler(&stubRecommender{}, nil)
	rec := httptest.NewRecorder()
	h.Weights(rec, httptest.NewRequest(http.MethodGet, "/weights", nil))

	var resp domain.WeightsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Weights != domain.DefaultWeights {
		t.Errorf("unexpected weights %+v", resp.Weights)
	}
}

func TestHealth(t *testing.T) {
	checks := map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	h := NewHandler(&stubRecommender{}, checks)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["postgres"] != "ok" || body["redis"] != "connection refused" {
		t.Errorf("unexpected body %v", body)
	}

	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Errorf("unexpected healthz body %s", rec.Body.String())
	}
}
