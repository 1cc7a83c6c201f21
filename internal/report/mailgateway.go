package report

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultMailTimeout = 15 * time.Second

// HTTPMailer sends report mails through the mail gateway's REST surface.
type HTTPMailer struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPMailer(endpoint string) (*HTTPMailer, error) {
	client := resty.New()
	client.SetTimeout(defaultMailTimeout)

	return NewHTTPMailerWithClient(endpoint, client)
}

func NewHTTPMailerWithClient(endpoint string, client *resty.Client) (*HTTPMailer, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("mail gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid mail gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	return &HTTPMailer{
		client:   client,
		endpoint: strings.TrimRight(trimmed, "/"),
	}, nil
}

func (m *HTTPMailer) Send(ctx context.Context, mail Mail) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("mailer is not initialized")
	}

	response, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mail).
		Post(m.endpoint + "/v1/mail")
	if err != nil {
		return fmt.Errorf("mail gateway request failed: %w", err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("mail gateway returned status %d", statusCode)
	}

	return nil
}
