// Package document fetches PDF sources and extracts page-level text.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidSource indicates the source URL does not reference a PDF resource.
// Checked before any network fetch.
var ErrInvalidSource = errors.New("source url does not reference a pdf")

// ErrFetchFailed indicates the source bytes could not be retrieved.
var ErrFetchFailed = errors.New("fetching pdf failed")

// ErrExtractFailed indicates the fetched bytes could not be parsed as a PDF.
var ErrExtractFailed = errors.New("extracting pdf text failed")

const maxFetchSize = 20 << 20 // 20MB

// Page is the extracted text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// ValidateSource checks that rawURL is an absolute http(s) URL whose path
// ends in .pdf. It performs no network access.
func ValidateSource(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return fmt.Errorf("%w: %s", ErrInvalidSource, rawURL)
	}
	return nil
}

// Title derives a document title from the source URL's path basename.
func Title(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if len(parts) == 0 {
		return rawURL
	}
	return strings.TrimSuffix(parts[len(parts)-1], ".pdf")
}

// Fetcher downloads PDF sources over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. If client is nil, a default with a 30s
// timeout is used.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{httpClient: client}
}

// Fetch validates the source URL and downloads its bytes. Validation
// failures return ErrInvalidSource without any network access.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if err := ValidateSource(sourceURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: source returned status %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFetchFailed, err)
	}
	return data, nil
}

// ExtractPages parses PDF bytes and returns the plain text of each page in
// order. Pages that yield no text are skipped.
func ExtractPages(data []byte) ([]Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrExtractFailed, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
