package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultDispatchTimeout = 30 * time.Second

type dispatchRequestBody struct {
	Subject              string          `json:"subject"`
	PartyID              string          `json:"partyId"`
	Reference            string          `json:"reference"`
	Payable              bool            `json:"payable"`
	DueDate              string          `json:"dueDate,omitempty"`
	PaymentReference     string          `json:"paymentReference,omitempty"`
	PaymentReferenceType string          `json:"paymentReferenceType,omitempty"`
	AccountNumber        string          `json:"accountNumber,omitempty"`
	AccountType          string          `json:"accountType,omitempty"`
	Amount               string          `json:"amount,omitempty"`
	File                 dispatchFileBody `json:"file"`
}

type dispatchFileBody struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// HTTPGateway dispatches invoices to the messaging gateway endpoint.
type HTTPGateway struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPGateway(endpoint string) (*HTTPGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultDispatchTimeout)
	client.SetRetryCount(0)

	return NewHTTPGatewayWithClient(endpoint, client)
}

func NewHTTPGatewayWithClient(endpoint string, client *resty.Client) (*HTTPGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultDispatchTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPGateway{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (g *HTTPGateway) Send(ctx context.Context, req DispatchRequest) (*Receipt, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatch request: %w", err)
	}

	body := dispatchRequestBody{
		Subject:              req.Subject,
		PartyID:              req.PartyID,
		Reference:            req.Reference,
		Payable:              req.Payable,
		DueDate:              req.DueDate,
		PaymentReference:     req.PaymentReference,
		PaymentReferenceType: req.PaymentReferenceType,
		AccountNumber:        req.AccountNumber,
		AccountType:          req.AccountType,
		Amount:               req.Amount,
		File: dispatchFileBody{
			Name:        req.File.Name,
			ContentType: req.File.ContentType,
			Content:     base64.StdEncoding.EncodeToString(req.File.Content),
		},
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(g.endpoint)
	if err != nil {
		return nil, &GatewayError{
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &GatewayError{
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Receipt{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  receiptMessageID(response),
		}, nil
	}

	return nil, &GatewayError{
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func receiptMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
