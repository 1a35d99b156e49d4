// Package preview fetches a readable text excerpt of a card's linked
// article for inline display on the dashboard.
package preview

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	defaultTimeout = 15 * time.Second
	maxExcerptLen  = 2000
)

// Fetcher retrieves article text via HTTP plus readability extraction.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads the article and returns a readable excerpt.
func (f *Fetcher) Fetch(articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil || parsedURL.Scheme == "" {
		return "", fmt.Errorf("invalid article URL %q", articleURL)
	}

	req, err := http.NewRequest("GET", articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "NewsForge/1.0 (news dashboard)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching article: %s", http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading article body: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extracting article text: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", articleURL)
	}
	return excerpt(text), nil
}

// excerpt trims to a display length, cutting on a word boundary.
func excerpt(text string) string {
	if len(text) <= maxExcerptLen {
		return text
	}
	cut := text[:maxExcerptLen]
	if i := strings.LastIndex(cut, " "); i > maxExcerptLen/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
