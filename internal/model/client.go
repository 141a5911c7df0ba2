package model

import (
	"errors"
	"sort"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
)

const (
	defaultLimit = 40
	maxRawFans   = 8
)

type Client struct {
	weights domain.Weights
}

func NewClient(weights domain.Weights) *Client {
	return &Client{weights: weights}
}

func (c *Client) Weights() domain.Weights {
	return c.weights
}

// ScoringError means the scorer produced a list that breaks the score contract.
type ScoringError struct {
	Msg string
	Err error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

func IsScoringError(err error) bool {
	var target *ScoringError
	return errors.As(err, &target)
}

type ScoreInput struct {
	Seeds        []domain.Tralbum
	FanPurchases map[string][]domain.Tralbum
	Limit        int
}

type candidate struct {
	item       domain.Tralbum
	fans       map[string]struct{}
	seedArtist bool
	seedLabel  bool
	tagOverlap float64
}

func (c *Client) Score(input ScoreInput) ([]domain.Recommendation, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	seedURLs := make(map[string]struct{}, len(input.Seeds))
	seedArtists := make(map[string]struct{})
	seedLabels := make(map[string]struct{})
	seedTags := make(map[string]struct{})
	for _, it := range input.Seeds {
		if it.URL != "" {
			seedURLs[it.URL] = struct{}{}
		}
		if it.Artist != "" {
			seedArtists[it.Artist] = struct{}{}
		}
		if it.Label != "" {
			seedLabels[it.Label] = struct{}{}
		}
		for _, tag := range it.Tags {
			seedTags[tag] = struct{}{}
		}
	}

	candidates := collectCandidates(input.FanPurchases, seedURLs)

	maxCount := 0
	for _, cand := range candidates {
		if n := len(cand.fans); n > maxCount {
			maxCount = n
		}
	}

	scored := make([]domain.Recommendation, 0, len(candidates))
	for url, cand := range candidates {
		if _, ok := seedArtists[cand.item.Artist]; ok && cand.item.Artist != "" {
			cand.seedArtist = true
		}
		if _, ok := seedLabels[cand.item.Label]; ok && cand.item.Label != "" {
			cand.seedLabel = true
		}
		cand.tagOverlap = jaccard(seedTags, cand.item.Tags)

		breakdown := domain.Breakdown{
			Copurchase:  copurchaseFactor(len(cand.fans), maxCount),
			LabelArtist: labelArtistFactor(cand.seedArtist, cand.seedLabel),
			Tags:        cand.tagOverlap,
		}
		total := c.weights.Total(breakdown)

		scored = append(scored, domain.Recommendation{
			Title:      cand.item.Title,
			Artist:     cand.item.Artist,
			Label:      cand.item.Label,
			URL:        url,
			Tags:       cand.item.Tags,
			Breakdown:  &breakdown,
			TotalScore: &total,
			Raw: &domain.RawEvidence{
				CopurchaseCount: len(cand.fans),
				Fans:            sortedFans(cand.fans, maxRawFans),
			},
		})
	}

	// Sort by score descending, ties by url
	sort.Slice(scored, func(i, j int) bool {
		si, sj := *scored[i].TotalScore, *scored[j].TotalScore
		if si != sj {
			return si > sj
		}
		return scored[i].URL < scored[j].URL
	})

	// Take top N
	if len(scored) > limit {
		scored = scored[:limit]
	}

	if err := domain.Verify(scored, c.weights); err != nil {
		return nil, &ScoringError{Msg: "scored list violates score contract", Err: err}
	}

	return scored, nil
}

// collectCandidates groups fan purchases by url, skipping the subject's own items.
// The first listing seen (fans in name order) supplies the metadata.
func collectCandidates(purchases map[string][]domain.Tralbum, seedURLs map[string]struct{}) map[string]*candidate {
	fanNames := make([]string, 0, len(purchases))
	for fan := range purchases {
		fanNames = append(fanNames, fan)
	}
	sort.Strings(fanNames)

	candidates := make(map[string]*candidate)
	for _, fan := range fanNames {
		for _, it := range purchases[fan] {
			if it.URL == "" {
				continue
			}
			if _, seen := seedURLs[it.URL]; seen {
				continue
			}
			cand, ok := candidates[it.URL]
			if !ok {
				cand = &candidate{item: it, fans: make(map[string]struct{})}
				candidates[it.URL] = cand
			}
			cand.fans[fan] = struct{}{}
		}
	}
	return candidates
}

func copurchaseFactor(count, maxCount int) float64 {
	if maxCount == 0 {
		return 0
	}
	return float64(count) / float64(maxCount)
}

func labelArtistFactor(seedArtist, seedLabel bool) float64 {
	if seedArtist || seedLabel {
		return 1
	}
	return 0
}

// jaccard is |a ∩ b| / |a ∪ b|, or 0 when either side is empty.
func jaccard(a map[string]struct{}, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sb := make(map[string]struct{}, len(b))
	for _, t := range b {
		sb[t] = struct{}{}
	}
	inter := 0
	for t := range sb {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	union := len(a) + len(sb) - inter
	return float64(inter) / float64(union)
}

func sortedFans(fans map[string]struct{}, n int) []string {
	out := make([]string, 0, len(fans))
	for f := range fans {
		out = append(out, f)
	}
	sort.Strings(out)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
