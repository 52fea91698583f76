package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=amateur&FORMAT=tle"

// maxBodyBytes caps a single response read. Even the full CelesTrak catalog
// is a fraction of this; anything bigger is a misbehaving source.
const maxBodyBytes = 50 * 1024 * 1024

// Fetcher retrieves raw TLE data from a remote source, optionally merging
// extra per-satellite URLs into the primary group fetch.
type Fetcher struct {
	sourceURL  string
	extraURLs  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. Extra URLs are
// fetched best-effort and concatenated after the primary body.
func NewFetcher(sourceURL string, logger *slog.Logger, extraURLs ...string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultSourceURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		extraURLs: extraURLs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SourceURL returns the configured primary source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// CatalogURL returns the CelesTrak single-satellite TLE URL for a NORAD ID.
func CatalogURL(noradID int) string {
	return fmt.Sprintf("https://celestrak.org/NORAD/elements/gp.php?CATNR=%d&FORMAT=tle", noradID)
}

// Fetch retrieves the primary source and any extra URLs, returning the
// concatenated raw TLE text. A failing extra URL is logged and skipped; a
// failing primary is an error.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	body, err := f.fetchOne(ctx, f.sourceURL)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(body)

	for _, u := range f.extraURLs {
		extra, err := f.fetchOne(ctx, u)
		if err != nil {
			f.logger.Warn("extra TLE source failed, skipping", "url", u, "error", err)
			continue
		}
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		buf.Write(extra)
	}

	return buf.Bytes(), nil
}

// FetchCatalog retrieves the TLE for a single satellite by NORAD catalog number.
func (f *Fetcher) FetchCatalog(ctx context.Context, noradID int) ([]byte, error) {
	return f.fetchOne(ctx, CatalogURL(noradID))
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	return body, nil
}
