// Package scraper reads Bandcamp fan collections and track/album pages.
//
// All upstream traffic goes through one rate limiter and one circuit
// breaker, and parsed pages are cached in a TTL key/value store.
package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	MaxSeedItems  = 25
	maxTags       = 12
	maxBodyBytes  = 5 << 20
	TTLTralbum    = 7 * 24 * time.Hour
	TTLCollection = 24 * time.Hour
	UserAgent     = "Mozilla/5.0 (Cratebuddy/1.0; +https://cratebuddy.example)"
	breakerName   = "bandcamp"
)

// Store is the page cache. *repository.Repository implements it.
type Store interface {
	Get(ctx context.Context, key string, ttl time.Duration, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Config struct {
	BaseURL    string
	RequestGap time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	store   Store
	fanURL  *regexp.Regexp
}

// StatusError is a non-200 upstream response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

func New(cfg Config, store Store) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestGap > 0 {
		limit = rate.Every(cfg.RequestGap)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		baseURL: base,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		cb:      newBreaker(),
		store:   store,
		fanURL:  regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `/([A-Za-z0-9_-]+)/?$`),
	}
}

// Opens at a 60% failure rate over at least 10 requests
func newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		// 4xx means the page is gone, not that Bandcamp is down
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("from", from.String()).Str("to", to.String()).Msg("[scraper] circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// FanName extracts the username from a fan page URL on the configured host.
func (c *Client) FanName(href string) (string, bool) {
	m := c.fanURL.FindStringSubmatch(strings.TrimSpace(href))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func CollectionKey(username string) string {
	return "collection:" + username
}

func TralbumKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "tralbum:" + hex.EncodeToString(sum[:])
}

// fetch GETs url behind the limiter and breaker and returns the body.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", url, err)
		}
		req.Header.Set("User-Agent", UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &StatusError{URL: url, Code: resp.StatusCode}
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return data, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return body, err
}

func (c *Client) cacheGet(ctx context.Context, key string, ttl time.Duration, dest any) bool {
	found, err := c.store.Get(ctx, key, ttl, dest)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("[scraper] cache get failed")
		return false
	}
	return found
}

func (c *Client) cacheSet(ctx context.Context, key string, value any) {
	if err := c.store.Set(ctx, key, value); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("[scraper] cache set failed")
	}
}
