// Package page is the boundary to the host document. The extension shell
// serves the rendered timeline HTML over HTTP and streams DOM events over a
// websocket; this package wraps both.
package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves snapshots of the monitored document.
type Fetcher struct {
	client  HTTPClient
	url     string
	timeout time.Duration
}

// NewFetcher creates a Fetcher reading snapshots from the given URL.
func NewFetcher(client HTTPClient, url string) *Fetcher {
	return &Fetcher{
		client:  client,
		url:     url,
		timeout: 30 * time.Second,
	}
}

// Snapshot downloads and parses the current state of the document.
func (f *Fetcher) Snapshot(ctx context.Context) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
