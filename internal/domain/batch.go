package domain

import "time"

// Batch is one compressed archive retrieved from the share for a
// (municipality, batch-name, date). It is owned by a single pipeline
// invocation for the duration of a run; Items are never shared across
// batches.
type Batch struct {
	ID           string
	Filename     string
	Municipality MunicipalityID
	BatchName    string
	Date         time.Time

	SourcePath  string
	TargetPath  string
	ArchivePath string

	Raw   []byte
	Items []Item

	ProcessingEnabled bool
	Completed         bool
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// TotalItems counts entries classified as invoices. The index document and
// other non-invoice entries are excluded.
func (b *Batch) TotalItems() int {
	n := 0
	for _, item := range b.Items {
		if item.IsInvoice() {
			n++
		}
	}
	return n
}

func (b *Batch) SentItems() int {
	n := 0
	for _, item := range b.Items {
		if item.IsSent() {
			n++
		}
	}
	return n
}

func (b *Batch) IgnoredItems() int {
	n := 0
	for _, item := range b.Items {
		if item.IsIgnored() {
			n++
		}
	}
	return n
}

// ReplaceItem swaps the item at index i for its advanced value. The pipeline
// threads updated item values through each stage instead of mutating in place.
func (b *Batch) ReplaceItem(i int, item Item) {
	if i < 0 || i >= len(b.Items) {
		return
	}
	b.Items[i] = item
}

// Release frees the local working bytes once the batch has been persisted.
func (b *Batch) Release() {
	b.Raw = nil
	for i := range b.Items {
		b.Items[i].Content = nil
	}
}

// BatchSummary is the read-model view of a processed batch exposed through
// the reporting API and status reports.
type BatchSummary struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	Municipality MunicipalityID `json:"municipality"`
	BatchName    string         `json:"batchName"`
	Date         time.Time      `json:"date"`
	TotalItems   int            `json:"totalItems"`
	SentItems    int            `json:"sentItems"`
	IgnoredItems int            `json:"ignoredItems"`
	Completed    bool           `json:"completed"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

// Summary projects the batch onto its read-model view.
func (b *Batch) Summary() BatchSummary {
	return BatchSummary{
		ID:           b.ID,
		Filename:     b.Filename,
		Municipality: b.Municipality,
		BatchName:    b.BatchName,
		Date:         b.Date,
		TotalItems:   b.TotalItems(),
		SentItems:    b.SentItems(),
		IgnoredItems: b.IgnoredItems(),
		Completed:    b.Completed,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
	}
}
