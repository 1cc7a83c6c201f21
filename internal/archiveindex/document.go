package archiveindex

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// DocumentName is the name of the index entry inside the batch container.
const DocumentName = "fakturaspec.xml"

// defaultDeclaration is used when the source document carries no header of
// its own. The index documents are produced by a legacy system and are
// ISO-8859-1, never UTF-8.
const defaultDeclaration = `<?xml version="1.0" encoding="ISO-8859-1"?>`

// agfCodeNotPayable is the AGF sentinel marking an invoice that must not be
// presented as payable.
const agfCodeNotPayable = "04"

// Document is the parsed archive index. It holds one <file> record per
// invoice and is mutated in place as items are confirmed delivered. A
// Document belongs to exactly one pipeline invocation at a time.
type Document struct {
	doc         *etree.Document
	declaration string
}

// Parse decodes an ISO-8859-1 index document. The XML declaration is kept
// aside verbatim and re-prepended on serialization so the header survives
// the mutate/write cycle byte for byte.
func Parse(raw []byte) (*Document, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode index document: %w", err)
	}

	text := string(decoded)
	declaration := defaultDeclaration
	if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), "<?xml") {
		if end := strings.Index(text, "?>"); end >= 0 {
			declaration = strings.TrimSpace(text[:end+2])
			text = text[end+2:]
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, fmt.Errorf("failed to parse index document: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("index document has no root element")
	}

	return &Document{doc: doc, declaration: declaration}, nil
}

// Record is one <file> element of the index.
type Record struct {
	el *etree.Element
}

func (r Record) Filename() string {
	return r.childText("filename")
}

// Metadata extracts the structured fields consumed by dispatch. Payable is
// derived from the AGF code, Reminder from a boolean-coded field.
func (r Record) Metadata() domain.InvoiceMetadata {
	return domain.InvoiceMetadata{
		InvoiceNumber:    r.childText("invoicenumber"),
		InvoiceDate:      r.childText("invoicedate"),
		DueDate:          r.childText("duedate"),
		PaymentReference: r.childText("paymentreference"),
		AccountNumber:    r.childText("accountnumber"),
		TotalAmount:      r.childText("totalamount"),
		Payable:          r.childText("agf") != agfCodeNotPayable,
		Reminder:         parseBoolCoded(r.childText("reminder")),
	}
}

func (r Record) childText(tag string) string {
	if r.el == nil {
		return ""
	}
	child := r.el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func parseBoolCoded(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "j":
		return true
	}
	return false
}

// Find locates the record whose filename field equals name.
func (d *Document) Find(name string) (Record, bool) {
	for _, el := range d.doc.FindElements("//file") {
		record := Record{el: el}
		if record.Filename() == name {
			return record, true
		}
	}
	return Record{}, false
}

// Remove deletes the record for the given filename. Removing a name with no
// matching record is a no-op.
func (d *Document) Remove(name string) {
	for _, el := range d.doc.FindElements("//file") {
		if (Record{el: el}).Filename() != name {
			continue
		}
		if parent := el.Parent(); parent != nil {
			parent.RemoveChild(el)
		}
	}
}

// RecordCount returns the number of file records left in the index.
func (d *Document) RecordCount() int {
	return len(d.doc.FindElements("//file"))
}

// Bytes serializes the mutated document back to ISO-8859-1. The literal
// declaration header is re-prepended and blank lines left behind by record
// removal are stripped before the document is persisted.
func (d *Document) Bytes() ([]byte, error) {
	body, err := d.doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize index document: %w", err)
	}

	lines := make([]string, 0, strings.Count(body, "\n")+2)
	lines = append(lines, d.declaration)
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n") + "\n"

	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode index document: %w", err)
	}

	return encoded, nil
}
