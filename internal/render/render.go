// Package render turns recommendations into terminal text. It never sorts
// or rescores: cards appear in the order the service returned them.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/actuallystonmai/cratebuddy/internal/client"
	"github.com/actuallystonmai/cratebuddy/internal/domain"
)

const (
	MaxTags     = 6
	Placeholder = "—"
	Ellipsis    = "…"
	EmptyList   = "No recommendations."
)

// FormatScore renders a total to 2 decimals, or the placeholder when absent.
func FormatScore(r domain.Recommendation) string {
	total, ok := r.Score()
	if !ok {
		return Placeholder
	}
	return fmt.Sprintf("%.2f", total)
}

// FormatTags joins at most MaxTags tags and marks the rest with an ellipsis.
func FormatTags(tags []string) string {
	if len(tags) <= MaxTags {
		return strings.Join(tags, ", ")
	}
	return strings.Join(tags[:MaxTags], ", ") + ", " + Ellipsis
}

// Card writes one recommendation with its position in the list.
func Card(w io.Writer, pos int, r domain.Recommendation) {
	fmt.Fprintf(w, "%d. %s\n", pos, r.Title)
	fmt.Fprintf(w, "   by %s\n", r.Artist)
	if r.Label != "" {
		fmt.Fprintf(w, "   Label: %s\n", r.Label)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(w, "   Tags: %s\n", FormatTags(r.Tags))
	}
	fmt.Fprintf(w, "   Score: %s\n", FormatScore(r))
	if r.URL != "" {
		fmt.Fprintf(w, "   %s\n", r.URL)
	}
}

// Breakdown writes the weighted contributions behind a card, their sum and
// the stated total. A total that does not match the sum is flagged.
func Breakdown(w io.Writer, r domain.Recommendation, weights domain.Weights) {
	c := weights.Contributions(r.Components())
	sum := c.Copurchase + c.LabelArtist + c.Tags

	fmt.Fprintf(w, "   Why:\n")
	fmt.Fprintf(w, "     copurchase    %.3f\n", c.Copurchase)
	fmt.Fprintf(w, "     label/artist  %.3f\n", c.LabelArtist)
	fmt.Fprintf(w, "     tags          %.3f\n", c.Tags)
	fmt.Fprintf(w, "     sum           %.3f\n", sum)
	if total, ok := r.Score(); ok {
		fmt.Fprintf(w, "     total_score   %.3f\n", total)
	} else {
		fmt.Fprintf(w, "     total_score   %s\n", Placeholder)
	}
	fmt.Fprintf(w, "     %s\n", WeightsLine(weights))
	if err := domain.VerifyScore(r, weights); err != nil {
		fmt.Fprintf(w, "     ! audit mismatch: %v\n", err)
	}
}

// WeightsLine spells out the score formula with the delivered constants.
func WeightsLine(weights domain.Weights) string {
	line := fmt.Sprintf("total = %g·copurchase + %g·label_artist + %g·tags",
		weights.Copurchase, weights.LabelArtist, weights.Tags)
	if weights.Version != "" {
		line += " (weights " + weights.Version + ")"
	}
	return line
}

// List writes every card in order. With why set, each card is followed by
// its breakdown.
func List(w io.Writer, recs []domain.Recommendation, weights domain.Weights, why bool) {
	if len(recs) == 0 {
		fmt.Fprintln(w, EmptyList)
		return
	}
	for i, r := range recs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		Card(w, i+1, r)
		if why {
			Breakdown(w, r, weights)
		}
	}
}

// Snapshot writes whatever the client currently holds.
func Snapshot(w io.Writer, s client.Snapshot, why bool) {
	switch s.State {
	case client.StateIdle:
		fmt.Fprintln(w, "Enter a Bandcamp username or fan page URL.")
	case client.StateLoading:
		fmt.Fprintf(w, "Digging through %s's collection...\n", s.Input)
	case client.StateError:
		fmt.Fprintf(w, "Error: %s\n", s.Error)
	case client.StateSuccess:
		List(w, s.Recommendations, s.Weights, why)
	}
}
