package handler

import (
	"context"
	"net/http"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

type Recommender interface {
	Recommend(ctx context.Context, input string) (*domain.RecommendationResult, error)
	Weights() domain.Weights
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	service  Recommender
	validate *validator.Validate
	checks   map[string]HealthCheck
}

func NewHandler(svc Recommender, checks map[string]HealthCheck) *Handler {
	return &Handler{
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		checks:   checks,
	}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  errCode,
	})
}
