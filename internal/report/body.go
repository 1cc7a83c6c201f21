package report

import (
	"html/template"
	"strings"
	"time"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

var statusTemplate = template.Must(template.New("status").Parse(`<html>
<body>
<h2>Invoice batches {{.Date}}</h2>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Municipality</th><th>Batch</th><th>File</th><th>Total</th><th>Sent</th><th>Ignored</th><th>Completed</th></tr>
{{range .Batches}}<tr>
<td>{{.Municipality}}</td>
<td>{{.BatchName}}</td>
<td>{{.Filename}}</td>
<td>{{.TotalItems}}</td>
<td>{{.SentItems}}</td>
<td>{{.IgnoredItems}}</td>
<td>{{if .Completed}}yes{{else}}no{{end}}</td>
</tr>
{{else}}<tr><td colspan="7">No batches processed.</td></tr>
{{end}}</table>
</body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<html>
<body>
<h2>Batch processing failed</h2>
<p><b>Municipality:</b> {{.Municipality}}</p>
<p><b>Batch:</b> {{.BatchName}}</p>
<p><b>Message:</b> {{.Message}}</p>
<p><b>Correlation id:</b> {{.CorrelationID}}</p>
</body>
</html>
`))

func buildStatusBody(date time.Time, summaries []*domain.BatchSummary) (string, error) {
	data := struct {
		Date    string
		Batches []*domain.BatchSummary
	}{
		Date:    date.Format("2006-01-02"),
		Batches: summaries,
	}

	var sb strings.Builder
	if err := statusTemplate.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func buildErrorBody(info ErrorInfo) (string, error) {
	var sb strings.Builder
	if err := errorTemplate.Execute(&sb, info); err != nil {
		return "", err
	}
	return sb.String(), nil
}
