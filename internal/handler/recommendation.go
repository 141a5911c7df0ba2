package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/metrics"
	"github.com/actuallystonmai/cratebuddy/internal/model"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 16

// POST /recommend
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req domain.RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metrics.RecommendRequests.WithLabelValues("invalid_input").Inc()
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid JSON body")
		return
	}

	// Validate input
	req.Input = strings.TrimSpace(req.Input)
	if err := h.validate.Struct(req); err != nil {
		metrics.RecommendRequests.WithLabelValues("invalid_input").Inc()
		writeError(w, http.StatusBadRequest, "invalid_input", "Provide a Bandcamp username or fan page URL")
		return
	}

	result, err := h.service.Recommend(r.Context(), req.Input)
	if err != nil {
		status, code, msg := categorizeError(err)
		metrics.RecommendRequests.WithLabelValues(code).Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Str("input", req.Input).Int("status", status).Msg("[handler] recommend failed")
		writeError(w, status, code, msg)
		return
	}

	outcome := "success"
	if len(result.Recommendations) == 0 {
		outcome = "empty"
	}
	metrics.RecommendRequests.WithLabelValues(outcome).Inc()

	recs := result.Recommendations
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	weights := h.service.Weights()
	writeJSON(w, http.StatusOK, domain.RecommendationResponse{
		Recommendations: recs,
		Weights:         &weights,
		Metadata: &domain.RecommendationMeta{
			Subject:     result.Subject,
			CacheHit:    result.CacheHit,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			TotalCount:  len(recs),
		},
	})
}

// GET /weights
func (h *Handler) Weights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.WeightsResponse{Weights: h.service.Weights()})
}

// Map service errors to status, code and user-facing message
func categorizeError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest, "invalid_input", "Provide a Bandcamp username or fan page URL"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input", domain.ErrInvalidInput.Error()
	case errors.Is(err, domain.ErrSubjectNotFound):
		return http.StatusNotFound, "subject_not_found", domain.ErrSubjectNotFound.Error()
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable", "Bandcamp is temporarily unavailable, please try again"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request_timeout", "Request timed out, please try again"
	case model.IsScoringError(err):
		return http.StatusInternalServerError, "internal_error", "Recommendation scores failed validation"
	default:
		return http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
	}
}
