package domain

import "strings"

// InvoiceMetadata holds the fields extracted from the archive index record
// belonging to one invoice.
type InvoiceMetadata struct {
	InvoiceNumber    string
	InvoiceDate      string
	DueDate          string
	PaymentReference string
	AccountNumber    string
	TotalAmount      string
	Payable          bool
	Reminder         bool
}

// IsComplete reports whether every field required for dispatch is present.
// Payable and Reminder are derived flags and always carry a value.
func (m InvoiceMetadata) IsComplete() bool {
	required := []string{
		m.InvoiceNumber,
		m.InvoiceDate,
		m.DueDate,
		m.PaymentReference,
		m.AccountNumber,
		m.TotalAmount,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
