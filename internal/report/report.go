// Package report produces the status and error emails sent after scheduled
// batch processing. Failures during a run are visible only through logs and
// these reports, never through a synchronous caller.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// Mail is one outbound message for the mail gateway.
type Mail struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"htmlBody"`
}

// Mailer is the outbound mail port.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Settings configures the report sender identity and audience.
type Settings struct {
	SubjectPrefix string
	Sender        string
	Recipients    []string
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Sender) == "" {
		return fmt.Errorf("report sender is required")
	}
	if len(s.Recipients) == 0 {
		return fmt.Errorf("at least one report recipient is required")
	}
	return nil
}

// Reporter builds and sends batch status and error reports.
type Reporter struct {
	mailer   Mailer
	settings Settings
	logger   *zap.Logger
}

func NewReporter(mailer Mailer, settings Settings, logger *zap.Logger) (*Reporter, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reporter{
		mailer:   mailer,
		settings: settings,
		logger:   logger,
	}, nil
}

// SendStatusReport mails the per-batch totals for one processing date.
func (r *Reporter) SendStatusReport(ctx context.Context, date time.Time, summaries []*domain.BatchSummary) error {
	body, err := buildStatusBody(date, summaries)
	if err != nil {
		return fmt.Errorf("failed to build status report: %w", err)
	}

	mail := Mail{
		From:     r.settings.Sender,
		To:       r.settings.Recipients,
		Subject:  fmt.Sprintf("%s %s", r.settings.SubjectPrefix, date.Format("2006-01-02")),
		HTMLBody: body,
	}

	if err := r.mailer.Send(ctx, mail); err != nil {
		return fmt.Errorf("failed to send status report: %w", err)
	}

	r.logger.Info("status report sent",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("batches", len(summaries)),
	)
	return nil
}

// ErrorInfo describes one failed batch run. CorrelationID points the
// reader at the matching log lines.
type ErrorInfo struct {
	BatchName     string
	Municipality  string
	Message       string
	CorrelationID string
}

// SendErrorReport mails a failure notice for one batch run.
func (r *Reporter) SendErrorReport(ctx context.Context, info ErrorInfo) error {
	body, err := buildErrorBody(info)
	if err != nil {
		return fmt.Errorf("failed to build error report: %w", err)
	}

	mail := Mail{
		From:     r.settings.Sender,
		To:       r.settings.Recipients,
		Subject:  fmt.Sprintf("%s ERROR %s/%s", r.settings.SubjectPrefix, info.Municipality, info.BatchName),
		HTMLBody: body,
	}

	if err := r.mailer.Send(ctx, mail); err != nil {
		return fmt.Errorf("failed to send error report: %w", err)
	}

	r.logger.Info("error report sent",
		zap.String("municipality", info.Municipality),
		zap.String("batchName", info.BatchName),
		zap.String("correlationId", info.CorrelationID),
	)
	return nil
}
