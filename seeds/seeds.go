// Package seeds writes an offline demo catalogue into the page cache so the
// service can answer for DemoSubject without reaching Bandcamp.
package seeds

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/scraper"
)

const (
	DemoSubject = "cratebuddy-demo"
	demoFans    = 12
	catalogSize = 60
	subjectSize = 6

	// Demo rows older than Freshness are rewritten. Must stay below
	// scraper.TTLCollection.
	Freshness       = scraper.TTLCollection / 2
	RefreshInterval = time.Hour
)

// Store is the subset of the KV repository the seeder writes to.
type Store interface {
	Get(ctx context.Context, key string, ttl time.Duration, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Catalog struct {
	Subject     []domain.Tralbum
	Collections map[string][]domain.Tralbum
}

// Seeded reports whether a demo collection younger than Freshness is stored.
func Seeded(ctx context.Context, store Store) (bool, error) {
	var items []domain.Tralbum
	found, err := store.Get(ctx, scraper.CollectionKey(DemoSubject), Freshness, &items)
	if err != nil {
		return false, fmt.Errorf("check demo collection: %w", err)
	}
	return found && len(items) > 0, nil
}

// Ensure seeds the demo data unless a fresh copy is already stored.
func Ensure(ctx context.Context, store Store) error {
	seeded, err := Seeded(ctx, store)
	if err != nil {
		return err
	}
	if seeded {
		logging.Debug().Str("subject", DemoSubject).Msg("[seed] demo data fresh, skipping")
		return nil
	}
	return Setup(ctx, store)
}

// Keep re-runs Ensure every interval until ctx is done, so the demo rows
// never age past the scraper's TTL on a long-running server.
func Keep(ctx context.Context, store Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Ensure(ctx, store); err != nil && ctx.Err() == nil {
				logging.Warn().Err(err).Msg("[seed] demo refresh failed")
			}
		}
	}
}

func Setup(ctx context.Context, store Store) error {
	rng := rand.New(rand.NewSource(42))
	cat := Build(rng)

	logging.Info().Int("items", len(cat.Subject)).Msg("[seed] inserting demo collection")
	if err := store.Set(ctx, scraper.CollectionKey(DemoSubject), cat.Subject); err != nil {
		return fmt.Errorf("seed demo collection: %w", err)
	}

	seen := make(map[string]struct{})
	for _, it := range cat.Subject {
		seen[it.URL] = struct{}{}
		if err := store.Set(ctx, scraper.TralbumKey(it.URL), it); err != nil {
			return fmt.Errorf("seed tralbum %s: %w", it.URL, err)
		}
	}

	fans := make([]string, 0, len(cat.Collections))
	for fan := range cat.Collections {
		fans = append(fans, fan)
	}
	sort.Strings(fans)

	logging.Info().Int("fans", len(fans)).Msg("[seed] inserting fan collections")
	for _, fan := range fans {
		items := cat.Collections[fan]
		if err := store.Set(ctx, scraper.CollectionKey(fan), items); err != nil {
			return fmt.Errorf("seed collection %s: %w", fan, err)
		}
		for _, it := range items {
			if _, ok := seen[it.URL]; ok {
				continue
			}
			seen[it.URL] = struct{}{}
			if err := store.Set(ctx, scraper.TralbumKey(it.URL), it); err != nil {
				return fmt.Errorf("seed tralbum %s: %w", it.URL, err)
			}
		}
	}

	logging.Info().Msg("[seed] seeding complete")
	return nil
}

// Build generates the demo catalogue. The same rng seed always yields the
// same catalogue.
func Build(rng *rand.Rand) Catalog {
	artists := []string{
		"Neon Coast", "Glass Harbor", "Low Orbit", "Vela Drift", "Static Bloom",
		"Paper Lanterns", "Cold Relay", "Moth Choir", "Dune Signal", "Quiet Engines",
		"Salt Mirror", "Hollow Tide",
	}
	labels := []string{"Synth Harbor", "Night Shift Tapes", "Driftwood Records", ""}
	tags := []string{
		"synthwave", "ambient", "electronic", "post-rock", "shoegaze",
		"dream pop", "techno", "lo-fi", "experimental", "downtempo",
	}
	words := []string{
		"Night", "Drive", "Signal", "Echo", "Harbor", "Glass", "Orbit",
		"Bloom", "Relay", "Tide", "Lantern", "Static", "Dust", "Engine",
	}

	catalog := make([]domain.Tralbum, catalogSize)
	for i := range catalog {
		artist := artists[rng.Intn(len(artists))]
		title := words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))]
		slug := strings.ToLower(strings.ReplaceAll(artist, " ", ""))
		catalog[i] = domain.Tralbum{
			Title:  title,
			Artist: artist,
			Label:  labels[rng.Intn(len(labels))],
			Tags:   pick(rng, tags, 2+rng.Intn(3)),
			URL:    fmt.Sprintf("https://%s.bandcamp.com/album/demo-%02d", slug, i),
		}
	}

	fans := make([]string, demoFans)
	for i := range fans {
		fans[i] = fmt.Sprintf("demo-fan-%02d", i+1)
	}

	subject := catalog[:subjectSize]
	collections := make(map[string][]domain.Tralbum, demoFans)
	supporters := make([][]string, subjectSize)

	for _, fan := range fans {
		owned := map[int]struct{}{}
		// every fan supports at least one subject item
		for _, idx := range rng.Perm(subjectSize)[:1+rng.Intn(3)] {
			owned[idx] = struct{}{}
			supporters[idx] = append(supporters[idx], fan)
		}
		for _, idx := range rng.Perm(catalogSize - subjectSize)[:4+rng.Intn(8)] {
			owned[subjectSize+idx] = struct{}{}
		}

		indexes := make([]int, 0, len(owned))
		for idx := range owned {
			indexes = append(indexes, idx)
		}
		sort.Ints(indexes)

		items := make([]domain.Tralbum, 0, len(indexes))
		for _, idx := range indexes {
			items = append(items, catalog[idx])
		}
		collections[fan] = items
	}

	seeds := make([]domain.Tralbum, subjectSize)
	for i := range subject {
		seeds[i] = subject[i]
		seeds[i].Fans = supporters[i]
		if seeds[i].Fans == nil {
			seeds[i].Fans = []string{}
		}
	}
	// fan collections carry the seed pages with their supporters too
	for fan, items := range collections {
		for j := range items {
			for i := range seeds {
				if items[j].URL == seeds[i].URL {
					items[j] = seeds[i]
				}
			}
		}
		collections[fan] = items
	}

	return Catalog{Subject: seeds, Collections: collections}
}

func pick(rng *rand.Rand, from []string, n int) []string {
	out := make([]string, 0, n)
	for _, idx := range rng.Perm(len(from))[:n] {
		out = append(out, from[idx])
	}
	return out
}
