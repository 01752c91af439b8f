package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/yazdeszhivu/cityagent/rag"
)

// HTMLLoader fetches web pages and extracts their readable text. Navigation,
// scripts and styling are dropped; the remaining markup is sanitized down to
// plain text.
type HTMLLoader struct {
	urls     []string
	client   *http.Client
	policy   *bluemonday.Policy
	category string
}

// HTMLLoaderOption configures the HTMLLoader.
type HTMLLoaderOption func(*HTMLLoader)

// WithHTTPClient sets the HTTP client used for fetching.
func WithHTTPClient(client *http.Client) HTMLLoaderOption {
	return func(l *HTMLLoader) {
		l.client = client
	}
}

// WithCategory tags every loaded document with a category.
func WithCategory(category string) HTMLLoaderOption {
	return func(l *HTMLLoader) {
		l.category = category
	}
}

// NewHTMLLoader creates a loader for the given page URLs.
func NewHTMLLoader(urls []string, opts ...HTMLLoaderOption) *HTMLLoader {
	l := &HTMLLoader{
		urls:   urls,
		client: &http.Client{Timeout: 30 * time.Second},
		policy: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches every URL and returns one document per page. A page that
// fails to fetch fails the whole load; ingestion is not partial.
func (l *HTMLLoader) Load(ctx context.Context) ([]Document, error) {
	documents := make([]Document, 0, len(l.urls))
	for _, url := range l.urls {
		doc, err := l.loadPage(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", url, err)
		}
		documents = append(documents, doc)
	}
	return documents, nil
}

func (l *HTMLLoader) loadPage(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	if h1 := strings.TrimSpace(page.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	page.Find("script, style, nav, header, footer, aside").Remove()

	content := page.Find("main, article").First()
	if content.Length() == 0 {
		content = page.Find("body").First()
	}

	text := l.policy.Sanitize(content.Text())
	text = normalizeWhitespace(text)
	if text == "" {
		return Document{}, fmt.Errorf("page has no readable text")
	}

	return Document{
		SourceURL: url,
		Text:      text,
		Metadata: rag.Metadata{
			Title:       title,
			Category:    l.category,
			PublishedAt: time.Now().UTC(),
		},
	}, nil
}

// normalizeWhitespace collapses runs of blank space so chunk boundaries are
// not dominated by layout artifacts.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
