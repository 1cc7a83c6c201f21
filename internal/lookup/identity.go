package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultLookupTimeout = 10 * time.Second

type protectionResponse struct {
	Protected bool `json:"protected"`
}

// HTTPIdentityClient queries the citizen identity-protection service.
type HTTPIdentityClient struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPIdentityClient(baseURL string) (*HTTPIdentityClient, error) {
	client := resty.New()
	client.SetTimeout(defaultLookupTimeout)
	client.SetRetryCount(0)

	return NewHTTPIdentityClientWithClient(baseURL, client)
}

func NewHTTPIdentityClientWithClient(baseURL string, client *resty.Client) (*HTTPIdentityClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("identity service base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid identity service base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultLookupTimeout)
	}

	return &HTTPIdentityClient{client: client, baseURL: trimmed}, nil
}

// CheckProtection never fails hard: transport problems come back as
// OutcomeTransportError for the caller's soft-fail policy.
func (c *HTTPIdentityClient) CheckProtection(ctx context.Context, legalID string) ProtectionResult {
	if c == nil || c.client == nil {
		return ProtectionResult{Outcome: OutcomeTransportError, Err: fmt.Errorf("identity client is not initialized")}
	}

	var body protectionResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("%s/v1/identities/%s/protection", c.baseURL, url.PathEscape(legalID)))
	if err != nil {
		return ProtectionResult{Outcome: OutcomeTransportError, Err: err}
	}

	switch response.StatusCode() {
	case http.StatusOK:
		return ProtectionResult{Outcome: OutcomeFound, Protected: body.Protected}
	case http.StatusNotFound:
		return ProtectionResult{Outcome: OutcomeNotFound}
	default:
		return ProtectionResult{
			Outcome: OutcomeTransportError,
			Err:     fmt.Errorf("identity service returned status %d", response.StatusCode()),
		}
	}
}
