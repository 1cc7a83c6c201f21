package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

type partyResponse struct {
	PartyID string `json:"partyId"`
}

// HTTPPartyClient resolves recipient party ids against the party service.
type HTTPPartyClient struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPPartyClient(baseURL string) (*HTTPPartyClient, error) {
	client := resty.New()
	client.SetTimeout(defaultLookupTimeout)
	client.SetRetryCount(0)

	return NewHTTPPartyClientWithClient(baseURL, client)
}

func NewHTTPPartyClientWithClient(baseURL string, client *resty.Client) (*HTTPPartyClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("party service base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid party service base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultLookupTimeout)
	}

	return &HTTPPartyClient{client: client, baseURL: trimmed}, nil
}

func (c *HTTPPartyClient) ResolveParty(ctx context.Context, legalID string, municipality domain.MunicipalityID) PartyResult {
	if c == nil || c.client == nil {
		return PartyResult{Outcome: OutcomeTransportError, Err: fmt.Errorf("party client is not initialized")}
	}

	var body partyResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("legalId", legalID).
		SetQueryParam("municipality", municipality.String()).
		SetResult(&body).
		Get(c.baseURL + "/v1/parties")
	if err != nil {
		return PartyResult{Outcome: OutcomeTransportError, Err: err}
	}

	switch response.StatusCode() {
	case http.StatusOK:
		if strings.TrimSpace(body.PartyID) == "" {
			return PartyResult{Outcome: OutcomeNotFound}
		}
		return PartyResult{Outcome: OutcomeFound, PartyID: strings.TrimSpace(body.PartyID)}
	case http.StatusNotFound:
		return PartyResult{Outcome: OutcomeNotFound}
	default:
		return PartyResult{
			Outcome: OutcomeTransportError,
			Err:     fmt.Errorf("party service returned status %d", response.StatusCode()),
		}
	}
}
