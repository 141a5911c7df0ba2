package domain

import (
	"fmt"
	"math"
)

// ScoreTolerance bounds the allowed gap between total_score and the weighted sum.
const ScoreTolerance = 1e-6

type ScoreMismatchError struct {
	URL      string
	Stated   float64
	Expected float64
}

func (e *ScoreMismatchError) Error() string {
	return fmt.Sprintf("score mismatch for %s: total_score %.6f, weighted sum %.6f", e.URL, e.Stated, e.Expected)
}

type OrderError struct {
	Index int
	Prev  float64
	Next  float64
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("recommendations out of order at %d: %.6f < %.6f", e.Index, e.Prev, e.Next)
}

// VerifyScore checks total_score against the weighted breakdown without modifying r.
func VerifyScore(r Recommendation, w Weights) error {
	total, ok := r.Score()
	if !ok {
		return fmt.Errorf("%s: %w", r.URL, ErrMissingScore)
	}
	b := r.Components()
	if b.Copurchase < 0 || b.LabelArtist < 0 || b.Tags < 0 {
		return fmt.Errorf("%s: negative breakdown component", r.URL)
	}
	expected := w.Total(b)
	if math.Abs(total-expected) > ScoreTolerance {
		return &ScoreMismatchError{URL: r.URL, Stated: total, Expected: expected}
	}
	return nil
}

// VerifyOrder checks that totals are non-increasing. Missing totals count as 0.
func VerifyOrder(recs []Recommendation) error {
	for i := 1; i < len(recs); i++ {
		prev, _ := recs[i-1].Score()
		next, _ := recs[i].Score()
		if next > prev {
			return &OrderError{Index: i, Prev: prev, Next: next}
		}
	}
	return nil
}

// Verify runs both checks over a full list.
func Verify(recs []Recommendation, w Weights) error {
	for _, r := range recs {
		if err := VerifyScore(r, w); err != nil {
			return err
		}
	}
	return VerifyOrder(recs)
}
