package seeds

import (
	"context"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/scraper"
	"github.com/goccy/go-json"
)

// memStore applies TTLs against a settable clock.
type memStore struct {
	mu   sync.Mutex
	now  time.Time
	data map[string]memRow
	ttls []time.Duration
}

type memRow struct {
	v  []byte
	ts time.Time
}

func newMemStore() *memStore {
	return &memStore{now: time.Now(), data: map[string]memRow{}}
}

func (m *memStore) Get(_ context.Context, key string, ttl time.Duration, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls = append(m.ttls, ttl)
	row, ok := m.data[key]
	if !ok || (ttl > 0 && m.now.Sub(row.ts) > ttl) {
		return false, nil
	}
	return true, json.Unmarshal(row.v, dest)
}

func (m *memStore) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memRow{v: b, ts: m.now}
	return nil
}

func (m *memStore) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func TestBuildDeterministic(t *testing.T) {
	a := Build(rand.New(rand.NewSource(42)))
	b := Build(rand.New(rand.NewSource(42)))
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical catalogues for the same seed")
	}
}

func TestBuildShape(t *testing.T) {
	cat := Build(rand.New(rand.NewSource(42)))

	if len(cat.Subject) != subjectSize {
		t.Fatalf("expected %d subject items, got %d", subjectSize, len(cat.Subject))
	}
	if len(cat.Collections) != demoFans {
		t.Fatalf("expected %d fans, got %d", demoFans, len(cat.Collections))
	}

	for _, seed := range cat.Subject {
		if !strings.HasPrefix(seed.URL, "https://") || seed.Title == "" || seed.Artist == "" {
			t.Errorf("incomplete seed %+v", seed)
		}
		for _, fan := range seed.Fans {
			if !owns(cat.Collections[fan], seed.URL) {
				t.Errorf("fan %s supports %s but does not own it", fan, seed.URL)
			}
		}
	}

	for fan, items := range cat.Collections {
		var supportsSeed bool
		for _, seed := range cat.Subject {
			if owns(items, seed.URL) {
				supportsSeed = true
			}
		}
		if !supportsSeed {
			t.Errorf("fan %s owns no subject item", fan)
		}
	}
}

func TestSetupAndSeeded(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	seeded, err := Seeded(ctx, store)
	if err != nil || seeded {
		t.Fatalf("expected empty store, got %v %v", seeded, err)
	}

	if err := Setup(ctx, store); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	seeded, err = Seeded(ctx, store)
	if err != nil || !seeded {
		t.Fatalf("expected seeded store, got %v %v", seeded, err)
	}

	var subject []domain.Tralbum
	if _, err := store.Get(ctx, scraper.CollectionKey(DemoSubject), 0, &subject); err != nil {
		t.Fatal(err)
	}
	var page domain.Tralbum
	found, err := store.Get(ctx, scraper.TralbumKey(subject[0].URL), 0, &page)
	if err != nil || !found {
		t.Fatalf("expected tralbum page for %s", subject[0].URL)
	}
	if page.URL != subject[0].URL {
		t.Errorf("unexpected page %+v", page)
	}
}

func owns(items []domain.Tralbum, url string) bool {
	for _, it := range items {
		if it.URL == url {
			return true
		}
	}
	return false
}

func TestEnsureReseedsBeforeScraperTTL(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	if err := Ensure(ctx, store); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	// Past the freshness window but inside the scraper TTL
	store.advance(Freshness + time.Minute)
	if seeded, _ := Seeded(ctx, store); seeded {
		t.Fatal("expected demo data to need a refresh")
	}
	if err := Ensure(ctx, store); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	// A scraper read a full collection TTL after the first seed still hits
	store.advance(scraper.TTLCollection - Freshness)
	var items []domain.Tralbum
	found, err := store.Get(ctx, scraper.CollectionKey(DemoSubject), scraper.TTLCollection, &items)
	if err != nil || !found || len(items) == 0 {
		t.Errorf("expected refreshed demo collection, got %v %v %d", found, err, len(items))
	}
}

func TestKeepRefreshesDemoData(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		Keep(ctx, store, 10*time.Millisecond)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if seeded, _ := Seeded(context.Background(), store); seeded {
			break
		}
		select {
		case <-deadline:
			t.Fatal("demo data was never seeded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Keep did not stop after cancel")
	}
}

func TestSeededUsesFreshnessWindow(t *testing.T) {
	store := newMemStore()
	if _, err := Seeded(context.Background(), store); err != nil {
		t.Fatal(err)
	}
	if len(store.ttls) != 1 || store.ttls[0] != Freshness || Freshness >= scraper.TTLCollection {
		t.Errorf("expected freshness %s below collection ttl, got %v", Freshness, store.ttls)
	}
}
