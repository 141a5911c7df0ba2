package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/metrics"
	"github.com/actuallystonmai/cratebuddy/internal/model"
)

const (
	maxFans          = 25
	maxFanPurchases  = 40
	maxResults       = 40
	fanFetchParallel = 4
)

var (
	fanPageRe  = regexp.MustCompile(`^https?://(?:www\.)?bandcamp\.com/([A-Za-z0-9_-]+)/?$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type Fetcher interface {
	FetchCollection(ctx context.Context, username string) ([]domain.Tralbum, error)
	FetchTralbum(ctx context.Context, url string) (*domain.Tralbum, error)
}

type ResultCache interface {
	Get(ctx context.Context, subject string) ([]domain.Recommendation, bool, error)
	Set(ctx context.Context, subject string, recs []domain.Recommendation) error
	ClearSubject(ctx context.Context, subject string) error
}

type Service struct {
	fetcher     Fetcher
	cache       ResultCache
	modelClient *model.Client
}

func NewService(fetcher Fetcher, cache ResultCache, modelClient *model.Client) *Service {
	return &Service{
		fetcher:     fetcher,
		cache:       cache,
		modelClient: modelClient,
	}
}

// Weights returns the weight set every score is computed with.
func (s *Service) Weights() domain.Weights {
	return s.modelClient.Weights()
}

// NormalizeInput turns a fan page URL or bare username into a username.
func NormalizeInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", domain.ErrEmptyInput
	}
	if m := fanPageRe.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if !usernameRe.MatchString(input) {
		return "", domain.ErrInvalidInput
	}
	return input, nil
}

func (s *Service) Recommend(ctx context.Context, input string) (*domain.RecommendationResult, error) {
	subject, err := NormalizeInput(input)
	if err != nil {
		return nil, err
	}

	// Check Cache
	cached, found, err := s.cache.Get(ctx, subject)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("subject", subject).Msg("[service] cache get error")
	}

	// Lists scored under other weights no longer pass the audit
	if found {
		if verr := domain.Verify(cached, s.modelClient.Weights()); verr != nil {
			logging.Ctx(ctx).Info().Err(verr).Str("subject", subject).Msg("[service] dropping stale cached list")
			if cerr := s.cache.ClearSubject(ctx, subject); cerr != nil {
				logging.Ctx(ctx).Warn().Err(cerr).Str("subject", subject).Msg("[service] cache clear error")
			}
			found = false
		}
	}

	// Use recommendations from cache if available
	if found {
		metrics.ResultCacheHits.Inc()
		return &domain.RecommendationResult{
			Subject:         subject,
			Recommendations: cached,
			CacheHit:        true,
		}, nil
	}
	metrics.ResultCacheMisses.Inc()

	// Cache miss -> generate recommendations
	recs, err := s.generateRecommendations(ctx, subject)
	if err != nil {
		return nil, err
	}

	// Store recommendations in cache
	if cacheErr := s.cache.Set(ctx, subject, recs); cacheErr != nil {
		logging.Ctx(ctx).Warn().Err(cacheErr).Str("subject", subject).Msg("[service] cache set error")
	}

	return &domain.RecommendationResult{
		Subject:         subject,
		Recommendations: recs,
		CacheHit:        false,
	}, nil
}

func (s *Service) generateRecommendations(ctx context.Context, subject string) ([]domain.Recommendation, error) {
	seeds, err := s.fetcher.FetchCollection(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrSubjectNotFound) || errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch collection: %w", err)
	}
	if len(seeds) == 0 {
		return []domain.Recommendation{}, nil
	}

	fans, err := s.crawlSupportedFans(ctx, seeds)
	if err != nil {
		return nil, err
	}

	purchases, err := s.getFanPurchases(ctx, fans)
	if err != nil {
		return nil, err
	}

	scored, err := s.modelClient.Score(model.ScoreInput{
		Seeds:        seeds,
		FanPurchases: purchases,
		Limit:        maxResults,
	})
	if err != nil {
		if model.IsScoringError(err) {
			metrics.ScoreAuditFailures.Inc()
		}
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("subject", subject).
		Int("seeds", len(seeds)).
		Int("fans", len(fans)).
		Int("results", len(scored)).
		Msg("[service] recommendations generated")

	return scored, nil
}

// crawlSupportedFans collects supporter names from the seed pages, de-duplicated in order.
func (s *Service) crawlSupportedFans(ctx context.Context, seeds []domain.Tralbum) ([]string, error) {
	var names []string
	for _, it := range seeds {
		if it.URL == "" {
			continue
		}
		fans := it.Fans
		if fans == nil {
			parsed, err := s.fetcher.FetchTralbum(ctx, it.URL)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logging.Ctx(ctx).Debug().Err(err).Str("url", it.URL).Msg("[service] seed page unavailable")
				continue
			}
			fans = parsed.Fans
		}
		if len(fans) > maxFans {
			fans = fans[:maxFans]
		}
		names = append(names, fans...)
	}

	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
		if len(unique) == maxFans {
			break
		}
	}
	return unique, nil
}

// getFanPurchases fetches each fan's collection with a bounded worker pool.
// A fan whose page fails contributes no purchases.
func (s *Service) getFanPurchases(ctx context.Context, fans []string) (map[string][]domain.Tralbum, error) {
	results := make([][]domain.Tralbum, len(fans))
	var wg sync.WaitGroup
	sem := make(chan struct{}, fanFetchParallel) // semaphore

	for i, fan := range fans {
		wg.Add(1)
		go func(idx int, name string) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			if ctx.Err() != nil {
				return
			}
			items, err := s.fetcher.FetchCollection(ctx, name)
			if err != nil {
				logging.Ctx(ctx).Debug().Err(err).Str("fan", name).Msg("[service] fan collection unavailable")
				return
			}
			if len(items) > maxFanPurchases {
				items = items[:maxFanPurchases]
			}
			results[idx] = items
		}(i, fan)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	purchases := make(map[string][]domain.Tralbum, len(fans))
	for i, fan := range fans {
		purchases[fan] = results[i]
	}
	return purchases, nil
}
