package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/metrics"
)

const collectionItemSelector = "a.item, a.collection-item, .collection-item-container a"

// FetchCollection returns up to MaxSeedItems parsed items from a fan's collection page.
// A 4xx on the fan page means the subject does not exist.
func (c *Client) FetchCollection(ctx context.Context, username string) ([]domain.Tralbum, error) {
	key := CollectionKey(username)

	var cached []domain.Tralbum
	if c.cacheGet(ctx, key, TTLCollection, &cached) {
		metrics.UpstreamFetches.WithLabelValues("collection", "cached").Inc()
		return cached, nil
	}

	pageURL := c.baseURL + "/" + username
	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("collection", "error").Inc()
		var se *StatusError
		if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: user page not reachable: %d", domain.ErrSubjectNotFound, se.Code)
		}
		return nil, fmt.Errorf("fetch collection %s: %w", username, err)
	}
	metrics.UpstreamFetches.WithLabelValues("collection", "fetched").Inc()

	links, err := parseCollectionLinks(body, pageURL, username)
	if err != nil {
		return nil, fmt.Errorf("parse collection %s: %w", username, err)
	}

	items := make([]domain.Tralbum, 0, len(links))
	for _, link := range links {
		if len(items) >= MaxSeedItems {
			break
		}
		item, err := c.FetchTralbum(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, domain.ErrUpstreamUnavailable) {
				return nil, err
			}
			logging.Ctx(ctx).Debug().Err(err).Str("url", link).Msg("[scraper] skipping item")
			continue
		}
		items = append(items, *item)
	}

	c.cacheSet(ctx, key, items)
	return items, nil
}

// parseCollectionLinks returns absolute, de-duplicated item links in page order.
// Root-relative hrefs live on the fan's own subdomain, e.g. /album/x on
// bandcamp.com/someone is someone.bandcamp.com/album/x.
func parseCollectionLinks(body []byte, pageURL, username string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	fanSite := &url.URL{
		Scheme: base.Scheme,
		Host:   username + "." + strings.TrimPrefix(base.Host, "www."),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(collectionItemSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		var abs string
		if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
			abs = fanSite.ResolveReference(ref).String()
		} else {
			abs = base.ResolveReference(ref).String()
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}
