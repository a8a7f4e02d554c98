package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultFetchTimeout bounds a single off-chain metadata request.
const DefaultFetchTimeout = 5 * time.Second

var (
	// ErrOffchainFetch is returned when the off-chain document cannot be retrieved.
	ErrOffchainFetch = errors.New("off-chain metadata fetch failed")

	// ErrNoImage is returned when the off-chain document has no image field.
	ErrNoImage = errors.New("off-chain metadata has no image")
)

// ImageFetcher resolves the image URL referenced by a metadata URI.
type ImageFetcher interface {
	FetchImage(ctx context.Context, uri string) (string, error)
}

// offchainMetadata is the subset of the Metaplex JSON standard we read.
type offchainMetadata struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image"`
}

// HTTPImageFetcher fetches off-chain metadata JSON over HTTP.
type HTTPImageFetcher struct {
	client *resty.Client
}

// NewHTTPImageFetcher creates a fetcher with the given per-request timeout.
func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPImageFetcher{client: client}
}

// FetchImage downloads the JSON document at uri and returns its image field.
func (f *HTTPImageFetcher) FetchImage(ctx context.Context, uri string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&offchainMetadata{}).
		Get(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOffchainFetch, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", ErrOffchainFetch, resp.StatusCode())
	}

	doc, ok := resp.Result().(*offchainMetadata)
	if !ok || doc.Image == "" {
		return "", ErrNoImage
	}
	return doc.Image, nil
}
