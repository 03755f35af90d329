// Package feeds implements the remote data sources shown on the site and the
// FeedService that serves them in mock, live or cached mode.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// ErrNotConfigured is returned by a source missing its credentials or identifiers
var ErrNotConfigured = errors.New("feed source not configured")

// DataSource produces the normalized JSON payload of one feed
type DataSource interface {
	Name() string
	FetchRaw(ctx context.Context) ([]byte, error)
}

// StatusError is a non-2xx response from a remote API
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Source, e.StatusCode, e.Body)
}

// getJSON performs a GET and decodes a 2xx body into out
func getJSON(ctx context.Context, client *http.Client, source, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", source, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s API: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Source: source, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", source, err)
	}

	return nil
}
