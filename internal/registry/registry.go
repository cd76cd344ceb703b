// Package registry lists image tags from container registries implementing
// the v2 API, including the bearer-token challenge flow issued through the
// WWW-Authenticate header.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmgilman/driftwatch/internal/image"
)

// Sentinel errors for registry operations.
var (
	// ErrFailedAuth is returned when the registry demands authentication the
	// client cannot satisfy: a 401 without a usable challenge, or a second
	// 401 after the single authenticated retry.
	ErrFailedAuth = errors.New("registry authentication failed")

	// ErrAuthRejected is returned when the token endpoint refuses the
	// request or hands back a malformed token.
	ErrAuthRejected = errors.New("registry token request rejected")

	// ErrUnexpectedStatus is returned for any response status outside the
	// protocol (non-2xx other than the expected 401 challenge).
	ErrUnexpectedStatus = errors.New("unexpected registry status")
)

// defaultTimeout bounds every outbound registry request so a hanging
// registry cannot stall a whole reconciliation cycle.
const defaultTimeout = 30 * time.Second

// defaultClientID identifies this client to registry token endpoints.
const defaultClientID = "driftwatch"

// Challenge is the bearer-auth challenge a registry issues via the
// WWW-Authenticate header of a 401 response.
type Challenge struct {
	Realm   string
	Service string
	Scope   string
}

// parseChallenge extracts a Challenge from a WWW-Authenticate header value
// of the form `Bearer realm="...",service="...",scope="..."`. All three
// keys are required.
func parseChallenge(header string) (Challenge, error) {
	_, rawParams, ok := strings.Cut(header, " ")
	if !ok {
		return Challenge{}, fmt.Errorf("%w: malformed challenge header %q", ErrFailedAuth, header)
	}

	params := make(map[string]string)
	for _, part := range strings.Split(rawParams, ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		params[strings.TrimSpace(key)] = strings.Trim(val, `"`)
	}

	ch := Challenge{
		Realm:   params["realm"],
		Service: params["service"],
		Scope:   params["scope"],
	}
	if ch.Realm == "" || ch.Service == "" || ch.Scope == "" {
		return Challenge{}, fmt.Errorf("%w: challenge %q is missing realm, service, or scope", ErrFailedAuth, header)
	}
	return ch, nil
}

// ClientConfig configures the registry client.
type ClientConfig struct {
	// HTTPClient is the client used for outbound requests. Defaults to a
	// client with a 30s timeout.
	HTTPClient *http.Client

	// Insecure switches registry requests to plain HTTP.
	Insecure bool

	// ClientID is sent to token endpoints as the client_id query parameter.
	ClientID string
}

// Client lists the tags a registry reports for an image.
type Client interface {
	// ListTags returns every tag published for the referenced image,
	// authenticating against the registry's token endpoint when challenged.
	ListTags(ctx context.Context, ref image.Reference) ([]string, error)
}
