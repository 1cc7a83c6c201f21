package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

type fakeMailer struct {
	sent []Mail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, mail Mail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func testSettings() Settings {
	return Settings{
		SubjectPrefix: "Fakturakörning",
		Sender:        "noreply@example.se",
		Recipients:    []string{"drift@example.se"},
	}
}

func TestSendStatusReport(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	r, err := NewReporter(mailer, testSettings(), nil)
	if err != nil {
		t.Fatalf("NewReporter() error = %v", err)
	}

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	summaries := []*domain.BatchSummary{
		{
			Municipality: domain.MunicipalityID("0180"),
			BatchName:    "faktura",
			Filename:     "faktura-240115_01.zip.lzma",
			TotalItems:   4,
			SentItems:    3,
			IgnoredItems: 0,
			Completed:    true,
		},
	}

	if err := r.SendStatusReport(context.Background(), date, summaries); err != nil {
		t.Fatalf("SendStatusReport() error = %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("mailer received %d mails, want 1", len(mailer.sent))
	}

	mail := mailer.sent[0]
	if mail.Subject != "Fakturakörning 2024-01-15" {
		t.Fatalf("Subject = %q, want %q", mail.Subject, "Fakturakörning 2024-01-15")
	}
	if mail.From != "noreply@example.se" {
		t.Fatalf("From = %q, want sender", mail.From)
	}
	for _, want := range []string{"0180", "faktura-240115_01.zip.lzma", "<td>4</td>", "<td>3</td>"} {
		if !strings.Contains(mail.HTMLBody, want) {
			t.Fatalf("HTMLBody missing %q:\n%s", want, mail.HTMLBody)
		}
	}
}

func TestSendStatusReportEmpty(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	r, err := NewReporter(mailer, testSettings(), nil)
	if err != nil {
		t.Fatalf("NewReporter() error = %v", err)
	}

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if err := r.SendStatusReport(context.Background(), date, nil); err != nil {
		t.Fatalf("SendStatusReport() error = %v", err)
	}

	if !strings.Contains(mailer.sent[0].HTMLBody, "No batches processed.") {
		t.Fatal("empty report should say no batches were processed")
	}
}

func TestSendErrorReport(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	r, err := NewReporter(mailer, testSettings(), nil)
	if err != nil {
		t.Fatalf("NewReporter() error = %v", err)
	}

	info := ErrorInfo{
		BatchName:     "faktura",
		Municipality:  "0180",
		Message:       "decompressing batch failed",
		CorrelationID: "cid-42",
	}

	if err := r.SendErrorReport(context.Background(), info); err != nil {
		t.Fatalf("SendErrorReport() error = %v", err)
	}

	mail := mailer.sent[0]
	if !strings.Contains(mail.Subject, "ERROR 0180/faktura") {
		t.Fatalf("Subject = %q, want error marker", mail.Subject)
	}
	for _, want := range []string{"decompressing batch failed", "cid-42"} {
		if !strings.Contains(mail.HTMLBody, want) {
			t.Fatalf("HTMLBody missing %q", want)
		}
	}
}

func TestNewReporterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewReporter(nil, testSettings(), nil); err == nil {
		t.Fatal("expected error for nil mailer")
	}

	settings := testSettings()
	settings.Sender = ""
	if _, err := NewReporter(&fakeMailer{}, settings, nil); err == nil {
		t.Fatal("expected error for missing sender")
	}

	settings = testSettings()
	settings.Recipients = nil
	if _, err := NewReporter(&fakeMailer{}, settings, nil); err == nil {
		t.Fatal("expected error for missing recipients")
	}
}

func TestHTTPMailerSend(t *testing.T) {
	t.Parallel()

	var got Mail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/mail" {
			t.Errorf("path = %s, want /v1/mail", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	mailer, err := NewHTTPMailer(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPMailer() error = %v", err)
	}

	mail := Mail{
		From:     "noreply@example.se",
		To:       []string{"drift@example.se"},
		Subject:  "Fakturakörning 2024-01-15",
		HTMLBody: "<html></html>",
	}

	if err := mailer.Send(context.Background(), mail); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.Subject != mail.Subject {
		t.Fatalf("subject = %q, want %q", got.Subject, mail.Subject)
	}
	if len(got.To) != 1 || got.To[0] != "drift@example.se" {
		t.Fatalf("to = %v, want recipients", got.To)
	}
}

func TestHTTPMailerSendFailureStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mailer, err := NewHTTPMailer(server.URL)
	if err != nil {
		t.Fatalf("NewHTTPMailer() error = %v", err)
	}

	if err := mailer.Send(context.Background(), Mail{}); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestNewHTTPMailerInvalidEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPMailer(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
	if _, err := NewHTTPMailer("://nope"); err == nil {
		t.Fatal("expected error for malformed endpoint")
	}
}
