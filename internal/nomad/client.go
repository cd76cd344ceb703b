package nomad

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// client implements the Client interface over the Nomad HTTP API.
type client struct {
	http    *http.Client
	address string
}

// NewClient creates a new Nomad API client.
func NewClient(cfg ClientConfig) Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{
		http:    httpClient,
		address: strings.TrimSuffix(cfg.Address, "/"),
	}
}

// Jobs lists every job known to the cluster.
func (c *client) Jobs(ctx context.Context) ([]JobStub, error) {
	var stubs []JobStub
	if err := c.get(ctx, "/v1/jobs", &stubs); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return stubs, nil
}

// Job fetches the detail of a single job by ID.
func (c *client) Job(ctx context.Context, id string) (Job, error) {
	var job Job
	if err := c.get(ctx, "/v1/job/"+url.PathEscape(id), &job); err != nil {
		return Job{}, fmt.Errorf("read job %q: %w", id, err)
	}
	return job, nil
}

// get performs a GET against the Nomad API and decodes the JSON response
// into out.
func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.address+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
