package queue

import (
	"fmt"
	"strings"
	"time"
)

// jobDateLayout is the wire format of the batch effective date.
const jobDateLayout = "2006-01-02"

// BatchJobMessage is the broker payload for one batch-processing job.
type BatchJobMessage struct {
	JobID         string `json:"jobId"`
	Municipality  string `json:"municipality"`
	BatchName     string `json:"batchName"`
	Date          string `json:"date"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m BatchJobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	if strings.TrimSpace(m.Municipality) == "" {
		return fmt.Errorf("municipality is required")
	}
	if strings.TrimSpace(m.BatchName) == "" {
		return fmt.Errorf("batchName is required")
	}
	if _, err := time.Parse(jobDateLayout, m.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", m.Date, err)
	}
	return nil
}

// EffectiveDate parses the job date. Validate must have accepted the
// message first.
func (m BatchJobMessage) EffectiveDate() (time.Time, error) {
	return time.Parse(jobDateLayout, m.Date)
}

// FormatJobDate renders a batch effective date in the wire format.
func FormatJobDate(date time.Time) string {
	return date.Format(jobDateLayout)
}
