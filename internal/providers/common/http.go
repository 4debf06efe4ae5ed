package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"appcharts/chartservice/internal/domain"
)

const (
	maxErrorBody   = 2048
	maxPayloadSize = 8 * 1024 * 1024
)

// Requester issues GET requests against one upstream and reports failures as
// *domain.UpstreamError tagged with the provider name.
type Requester struct {
	Provider  string
	Client    *http.Client
	UserAgent string
}

func (r Requester) GetJSON(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: r.Provider, Err: err}
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Provider: r.Provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{
			Provider:   r.Provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, &domain.UpstreamError{Provider: r.Provider, Err: err}
	}
	return payload, nil
}

// MalformedPayload reports a 2xx response whose body could not be used.
func MalformedPayload(provider, detail string) error {
	return &domain.UpstreamError{Provider: provider, Err: fmt.Errorf("malformed payload: %s", detail)}
}
