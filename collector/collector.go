package collector

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"novel-epub/utils"
)

// Collector pages through a chapter-listing API and extracts chapter links.
type Collector struct {
	client *resty.Client
	limit  int64
	log    *logrus.Entry
}

func New(client *resty.Client, limit int, log *logrus.Entry) *Collector {
	if limit < 1 {
		limit = 1
	}
	return &Collector{client: client, limit: int64(limit), log: log}
}

type pageResponse struct {
	Data string `json:"data"`
}

// Collect fetches pages from..to and returns their links in page order, then in-page order.
// A failing page is logged and contributes nothing.
func (c *Collector) Collect(ctx context.Context, apiURL string, from, to int) ([]string, error) {
	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", apiURL, err)
	}
	if !utils.IsHTTPURL(base.String()) || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q: must be absolute http(s)", apiURL)
	}
	if to < from {
		return []string{}, nil
	}

	results := make([][]string, to-from+1)
	sem := semaphore.NewWeighted(c.limit)
	var wg sync.WaitGroup

	for page := from; page <= to; page++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			defer sem.Release(1)

			links, err := c.fetchPage(ctx, base, page)
			if err != nil {
				c.log.WithField("page", page).Errorf("Failed to collect chapter links: %v", err)
				return
			}
			c.log.WithField("page", page).Debugf("Found %d chapter links", len(links))
			results[page-from] = links
		}(page)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make([]string, 0)
	for _, links := range results {
		all = append(all, links...)
	}
	return all, nil
}

// CollectToFile appends the collected links to path, one per line.
func (c *Collector) CollectToFile(ctx context.Context, apiURL string, from, to int, path string) (int, error) {
	links, err := c.Collect(ctx, apiURL, from, to)
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		c.log.Warnf("No chapter links found for pages %d-%d", from, to)
		return 0, nil
	}
	if err := utils.AppendLines(path, links); err != nil {
		return 0, fmt.Errorf("failed to save chapter links: %w", err)
	}
	c.log.Infof("Saved %d chapter links to %s", len(links), path)
	return len(links), nil
}

func pageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Collector) fetchPage(ctx context.Context, base *url.URL, page int) ([]string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Encoding", "br, gzip").
		SetDoNotParseResponse(true).
		Get(pageURL(base, page))
	if err != nil {
		return nil, err
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status())
	}

	body, err := decodeBody(resp.Header().Get("Content-Encoding"), raw)
	if err != nil {
		return nil, err
	}
	var payload pageResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return extractLinks(base, payload.Data)
}

func decodeBody(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "br":
		return brotli.NewReader(r), nil
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip body: %w", err)
		}
		return gz, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// extractLinks resolves root-relative hrefs against the API host and keeps absolute http(s) links.
func extractLinks(base *url.URL, fragment string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(fragment)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		switch {
		case strings.HasPrefix(href, "//"):
			href = base.Scheme + ":" + href
		case strings.HasPrefix(href, "/"):
			href = base.Scheme + "://" + base.Host + href
		}
		if utils.IsHTTPURL(href) {
			links = append(links, href)
		}
	})
	return links, nil
}
