package classify

import (
	"strings"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// invoiceExtension is the document extension that marks an entry as an
// invoice. The comparison is case-insensitive.
const invoiceExtension = ".pdf"

// Classifier assigns each extracted entry its initial type and status.
// Classification is pure: same filename and configuration, same outcome.
type Classifier struct {
	requiredPrefixes []string
}

func New(requiredPrefixes []string) *Classifier {
	prefixes := make([]string, 0, len(requiredPrefixes))
	for _, p := range requiredPrefixes {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			prefixes = append(prefixes, trimmed)
		}
	}
	return &Classifier{requiredPrefixes: prefixes}
}

// Classify maps a filename to (type, status). Non-invoice entries are
// ignored immediately; invoices start IN_PROGRESS unless a configured
// prefix filter excludes them.
func (c *Classifier) Classify(filename string) (domain.ItemType, domain.ItemStatus) {
	if !strings.HasSuffix(strings.ToLower(filename), invoiceExtension) {
		return domain.TypeOther, domain.StatusIgnored
	}

	if len(c.requiredPrefixes) > 0 && !c.matchesPrefix(filename) {
		return domain.TypeInvoice, domain.StatusIgnored
	}

	return domain.TypeInvoice, domain.StatusInProgress
}

func (c *Classifier) matchesPrefix(filename string) bool {
	for _, prefix := range c.requiredPrefixes {
		if strings.HasPrefix(filename, prefix) {
			return true
		}
	}
	return false
}
