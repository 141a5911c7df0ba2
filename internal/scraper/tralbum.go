package scraper

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/metrics"
)

const (
	artistSelector = "#name-section .albumTitle span a, #name-section .artist, span[itemprop='byArtist'] a"
	tagSelector    = ".tralbum-tags a, .tag"
)

// FetchTralbum parses a track or album page.
func (c *Client) FetchTralbum(ctx context.Context, url string) (*domain.Tralbum, error) {
	key := TralbumKey(url)

	var cached domain.Tralbum
	if c.cacheGet(ctx, key, TTLTralbum, &cached) {
		metrics.UpstreamFetches.WithLabelValues("tralbum", "cached").Inc()
		return &cached, nil
	}

	body, err := c.fetch(ctx, url)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("tralbum", "error").Inc()
		return nil, err
	}
	metrics.UpstreamFetches.WithLabelValues("tralbum", "fetched").Inc()

	item, err := c.parseTralbum(body, url)
	if err != nil {
		return nil, fmt.Errorf("parse tralbum %s: %w", url, err)
	}

	c.cacheSet(ctx, key, item)
	return item, nil
}

func (c *Client) parseTralbum(body []byte, url string) (*domain.Tralbum, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title, _ := doc.Find("meta[property='og:title']").First().Attr("content")
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(doc.Find("#name-section .trackTitle").First().Text())
	}

	artist := strings.TrimSpace(doc.Find(artistSelector).First().Text())
	label := strings.TrimSpace(doc.Find(`a[href*="/label/"]`).First().Text())

	tags := make([]string, 0, maxTags)
	doc.Find(tagSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			tags = append(tags, t)
		}
		return len(tags) < maxTags
	})

	seen := make(map[string]struct{})
	fans := make([]string, 0)
	doc.Find(".supported-by a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name, ok := c.FanName(href)
		if !ok {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		fans = append(fans, name)
	})

	return &domain.Tralbum{
		Title:  title,
		Artist: artist,
		Label:  label,
		Tags:   tags,
		URL:    url,
		Fans:   fans,
	}, nil
}
