package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Gateway is the outbound invoice delivery port.
type Gateway interface {
	Send(ctx context.Context, req DispatchRequest) (*Receipt, error)
}

// InvoiceFile is the document attached to a dispatch. Content travels
// base64-encoded on the wire.
type InvoiceFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// DispatchRequest carries one invoice to the messaging gateway.
type DispatchRequest struct {
	Subject              string
	PartyID              string
	Reference            string
	Payable              bool
	DueDate              string
	PaymentReference     string
	PaymentReferenceType string
	AccountNumber        string
	AccountType          string
	Amount               string
	File                 InvoiceFile
}

func (r DispatchRequest) Validate() error {
	if strings.TrimSpace(r.PartyID) == "" {
		return fmt.Errorf("party id is required")
	}
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(r.File.Name) == "" {
		return fmt.Errorf("invoice file name is required")
	}
	if len(r.File.Content) == 0 {
		return fmt.Errorf("invoice file content is required")
	}
	return nil
}

// Receipt stores gateway call metadata for audit and persistence.
type Receipt struct {
	StatusCode int
	Body       string
	MessageID  string
}
