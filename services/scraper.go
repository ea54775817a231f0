package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultScrapeTimeout bounds a title fetch
const DefaultScrapeTimeout = 10 * time.Second

// TitleScraper fetches a human readable title for a URL
type TitleScraper interface {
	Title(ctx context.Context, url string) (string, error)
}

// HTMLTitleScraper reads the <title> element of a page
type HTMLTitleScraper struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTMLTitleScraper creates a scraper. A nil client uses a default one.
func NewHTMLTitleScraper(client *http.Client, timeout time.Duration) *HTMLTitleScraper {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	return &HTMLTitleScraper{client: client, timeout: timeout}
}

// Title implements TitleScraper
func (s *HTMLTitleScraper) Title(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) mediaserver")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", errors.New("page has no title")
	}
	return title, nil
}
