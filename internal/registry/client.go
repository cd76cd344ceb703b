package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmgilman/driftwatch/internal/image"
)

// client implements the Client interface against the registry v2 API.
type client struct {
	http     *http.Client
	scheme   string
	clientID string
}

// NewClient creates a new registry client with the given configuration.
func NewClient(cfg ClientConfig) Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	scheme := "https"
	if cfg.Insecure {
		scheme = "http"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}

	return &client{http: httpClient, scheme: scheme, clientID: clientID}
}

// tagList is the registry's response to a tags/list request.
type tagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// fetchResult is the outcome of a single tags/list attempt: tags on
// success, a challenge when the registry answered 401, or a terminal error.
type fetchResult struct {
	tags      []string
	challenge *Challenge
	err       error
}

// ListTags fetches the tag list for an image, performing at most one
// authentication round-trip. The flow is: try anonymously; on a 401
// challenge, obtain a bearer token from the challenge's realm and retry
// once; a second 401 is terminal.
func (c *client) ListTags(ctx context.Context, ref image.Reference) ([]string, error) {
	res := c.fetchTags(ctx, ref, "")
	if res.err != nil {
		return nil, res.err
	}
	if res.challenge == nil {
		return res.tags, nil
	}

	token, err := c.fetchToken(ctx, *res.challenge)
	if err != nil {
		return nil, err
	}

	res = c.fetchTags(ctx, ref, token)
	if res.err != nil {
		return nil, res.err
	}
	if res.challenge != nil {
		// The registry rejected the token it just issued. Never loop.
		return nil, fmt.Errorf("%w: registry rejected freshly issued token", ErrFailedAuth)
	}
	return res.tags, nil
}

// fetchTags performs a single tags/list request, with the bearer token
// attached when non-empty.
func (c *client) fetchTags(ctx context.Context, ref image.Reference, token string) fetchResult {
	target := fmt.Sprintf("%s://%s/v2/%s/tags/list", c.scheme, ref.Registry, ref.Repository())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fetchResult{err: fmt.Errorf("build tags request: %w", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fetchResult{err: fmt.Errorf("fetch tags for %s: %w", ref.Repository(), err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		header := resp.Header.Get("Www-Authenticate")
		if header == "" {
			return fetchResult{err: fmt.Errorf("%w: 401 without WWW-Authenticate header", ErrFailedAuth)}
		}
		ch, err := parseChallenge(header)
		if err != nil {
			return fetchResult{err: err}
		}
		return fetchResult{challenge: &ch}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fetchResult{err: fmt.Errorf("%w: %d listing tags for %s", ErrUnexpectedStatus, resp.StatusCode, ref.Repository())}
	}

	var list tagList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fetchResult{err: fmt.Errorf("decode tag list: %w", err)}
	}
	return fetchResult{tags: list.Tags}
}

// tokenResponse is the token endpoint's response body.
type tokenResponse struct {
	Token string `json:"token"`
}

// fetchToken requests a bearer token from the challenge's realm. The token
// is validated structurally only; this client trusts the registry's TLS
// channel, not the token itself.
func (c *client) fetchToken(ctx context.Context, ch Challenge) (string, error) {
	realm, err := url.Parse(ch.Realm)
	if err != nil {
		return "", fmt.Errorf("%w: bad realm %q: %w", ErrAuthRejected, ch.Realm, err)
	}

	q := realm.Query()
	q.Set("service", ch.Service)
	q.Set("scope", ch.Scope)
	q.Set("client_id", c.clientID)
	realm.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, realm.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token from %s: %w", realm.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrAuthRejected, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %w", ErrAuthRejected, err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%w: token response carried no token", ErrAuthRejected)
	}

	if _, _, err := jwt.NewParser().ParseUnverified(tr.Token, jwt.MapClaims{}); err != nil {
		return "", fmt.Errorf("%w: malformed token: %w", ErrAuthRejected, err)
	}

	return tr.Token, nil
}
