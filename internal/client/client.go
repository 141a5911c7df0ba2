// Package client is the query side of the recommendation contract. A
// Client issues one POST /recommend per Submit and tracks the outcome in an
// explicit state machine, so a second Submit while loading is rejected.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/goccy/go-json"
)

const genericFailure = "Request failed"

var (
	ErrBusy       = errors.New("a request is already in flight")
	ErrSuperseded = errors.New("request superseded by a newer one")
)

// RequestError carries the message shown to the user.
type RequestError struct {
	Status  int // 0 for transport failures
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Snapshot is a copy of the client's view at one moment.
type Snapshot struct {
	State           State
	Input           string
	Recommendations []domain.Recommendation
	Weights         domain.Weights
	Error           string
}

type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	gen     uint64
	state   State
	input   string
	recs    []domain.Recommendation
	weights domain.Weights
	errMsg  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		weights: domain.DefaultWeights,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope accepts both success and failure bodies.
type envelope struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Weights         *domain.Weights         `json:"weights"`
	Error           string                  `json:"error"`
}

// Submit runs one recommendation request. Empty input and a request while
// another is loading are rejected without touching the network.
func (c *Client) Submit(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.ErrEmptyInput
	}

	c.mu.Lock()
	if !c.state.CanSubmit() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.input = input
	c.recs = nil
	c.errMsg = ""
	c.mu.Unlock()

	recs, weights, err := c.fetch(ctx, input)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Last request wins
	if gen != c.gen {
		return ErrSuperseded
	}

	if err != nil {
		c.state = StateError
		c.errMsg = err.Error()
		logging.Ctx(ctx).Debug().Err(err).Str("input", input).Msg("[client] request failed")
		return err
	}

	c.state = StateSuccess
	c.recs = recs
	if weights != nil && !weights.IsZero() {
		c.weights = *weights
	} else {
		c.weights = domain.DefaultWeights
	}
	return nil
}

// Reset abandons any in-flight request and returns to Idle. A pending
// result that arrives later is discarded.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = StateIdle
	c.input = ""
	c.recs = nil
	c.errMsg = ""
}

func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := make([]domain.Recommendation, len(c.recs))
	copy(recs, c.recs)
	return Snapshot{
		State:           c.state,
		Input:           c.input,
		Recommendations: recs,
		Weights:         c.weights,
		Error:           c.errMsg,
	}
}

func (c *Client) fetch(ctx context.Context, input string) ([]domain.Recommendation, *domain.Weights, error) {
	body, err := json.Marshal(domain.RecommendRequest{Input: input})
	if err != nil {
		return nil, nil, &RequestError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, nil, &RequestError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := genericFailure
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return nil, nil, &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, nil, &RequestError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s: malformed response body", genericFailure),
		}
	}

	if env.Recommendations == nil {
		env.Recommendations = []domain.Recommendation{}
	}
	return env.Recommendations, env.Weights, nil
}
