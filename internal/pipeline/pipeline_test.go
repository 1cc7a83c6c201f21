package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/mkarlsson/invoice-relay/internal/archiveindex"
	"github.com/mkarlsson/invoice-relay/internal/codec"
	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/gateway"
	"github.com/mkarlsson/invoice-relay/internal/lookup"
	"github.com/mkarlsson/invoice-relay/internal/recipient"
)

type fakeShare struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeShare() *fakeShare {
	return &fakeShare{files: make(map[string][]byte)}
}

func shareKey(path, name string) string {
	return strings.Trim(path, "/") + "/" + name
}

func (s *fakeShare) List(_ context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.Trim(path, "/") + "/"
	names := make([]string, 0)
	for key := range s.files {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	return names, nil
}

func (s *fakeShare) Read(_ context.Context, path, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[shareKey(path, name)]
	if !ok {
		return nil, fmt.Errorf("share file %q: %w", name, domain.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *fakeShare) Write(_ context.Context, path, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.files[shareKey(path, name)] = stored
	return nil
}

func (s *fakeShare) Delete(_ context.Context, path, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := shareKey(path, name)
	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("share file %q: %w", name, domain.ErrNotFound)
	}
	delete(s.files, key)
	return nil
}

func (s *fakeShare) get(path, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[shareKey(path, name)]
	return data, ok
}

type fakeGateway struct {
	mu       sync.Mutex
	sent     []gateway.DispatchRequest
	failFile string
}

func (g *fakeGateway) Send(_ context.Context, req gateway.DispatchRequest) (*gateway.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failFile != "" && req.File.Name == g.failFile {
		return nil, &gateway.GatewayError{StatusCode: 500, Message: "boom", Transient: true}
	}
	g.sent = append(g.sent, req)
	return &gateway.Receipt{StatusCode: 202, MessageID: fmt.Sprintf("msg-%d", len(g.sent))}, nil
}

type fakeIdentityClient struct {
	protected map[string]bool
}

func (c *fakeIdentityClient) CheckProtection(_ context.Context, legalID string) lookup.ProtectionResult {
	return lookup.ProtectionResult{Outcome: lookup.OutcomeFound, Protected: c.protected[legalID]}
}

type fakePartyClient struct{}

func (c *fakePartyClient) ResolveParty(_ context.Context, legalID string, _ domain.MunicipalityID) lookup.PartyResult {
	return lookup.PartyResult{Outcome: lookup.OutcomeFound, PartyID: "party-" + legalID}
}

type fakeStore struct {
	mu      sync.Mutex
	batches []*domain.Batch
}

func (s *fakeStore) SaveBatch(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, batch)
	return nil
}

// buildArchive packs the given pdf entries together with an index document
// holding one complete record per entry, then compresses the container.
func buildArchive(t *testing.T, filenames []string) []byte {
	t.Helper()

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n<files>\n")
	for i, name := range filenames {
		sb.WriteString("  <file>\n")
		sb.WriteString("    <filename>" + name + "</filename>\n")
		sb.WriteString(fmt.Sprintf("    <invoicenumber>%d</invoicenumber>\n", 1000+i))
		sb.WriteString("    <invoicedate>2024-03-01</invoicedate>\n")
		sb.WriteString("    <duedate>2024-03-31</duedate>\n")
		sb.WriteString(fmt.Sprintf("    <paymentreference>%d</paymentreference>\n", 555000+i))
		sb.WriteString("    <accountnumber>5050-1055</accountnumber>\n")
		sb.WriteString("    <totalamount>1250.50</totalamount>\n")
		sb.WriteString("    <agf>01</agf>\n")
		sb.WriteString("    <reminder>0</reminder>\n")
		sb.WriteString("  </file>\n")
	}
	sb.WriteString("</files>\n")

	indexBytes, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(sb.String()))
	if err != nil {
		t.Fatalf("failed to encode index: %v", err)
	}

	entries := []codec.Entry{{Name: archiveindex.DocumentName, Data: indexBytes}}
	for _, name := range filenames {
		entries = append(entries, codec.Entry{Name: name, Data: []byte("%PDF " + name)})
	}

	container, err := codec.Pack(entries)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	compressed, err := codec.Compress(container)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	return compressed
}

func openArchiveIndex(t *testing.T, raw []byte) (*archiveindex.Document, []codec.Entry) {
	t.Helper()

	container, err := codec.Decompress(raw)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	entries, err := codec.Unpack(container)
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}

	indexEntry, ok := codec.Find(entries, archiveindex.DocumentName)
	if !ok {
		t.Fatal("repacked archive has no index document")
	}

	doc, err := archiveindex.Parse(indexEntry.Data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	return doc, entries
}

func testSource(enabled bool) domain.BatchSource {
	return domain.BatchSource{
		Municipality:    domain.MunicipalityID("0180"),
		BatchName:       "faktura",
		SourcePath:      "incoming",
		TargetPath:      "outgoing",
		ArchivePath:     "archived",
		Subject:         "Din faktura",
		ReferencePrefix: "INV-",
		Enabled:         enabled,
	}
}

func newTestPipeline(t *testing.T, shareClient *fakeShare, gw gateway.Gateway, store *fakeStore) *Pipeline {
	t.Helper()

	resolver := recipient.NewResolver(&fakeIdentityClient{}, &fakePartyClient{}, nil)

	p, err := New(shareClient, resolver, gw, nil, store, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestMatchesCandidate(t *testing.T) {
	t.Parallel()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		filename string
		want     bool
	}{
		{name: "exact match", filename: "faktura-240115_01.zip.lzma", want: true},
		{name: "uppercase suffix", filename: "faktura-240115_01.ZIP.LZMA", want: true},
		{name: "wrong prefix", filename: "other-240115_01.zip.lzma", want: false},
		{name: "wrong date", filename: "faktura-240116_01.zip.lzma", want: false},
		{name: "missing date marker", filename: "faktura_240115.zip.lzma", want: false},
		{name: "wrong suffix", filename: "faktura-240115_01.zip", want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := matchesCandidate(tc.filename, "faktura", date); got != tc.want {
				t.Fatalf("matchesCandidate(%q) = %v, want %v", tc.filename, got, tc.want)
			}
		})
	}
}

func TestRunAllItemsSent(t *testing.T) {
	t.Parallel()

	filenames := []string{
		"faktura_1_to_8701162383.pdf",
		"faktura_2_to_8701162383.pdf",
		"faktura_3_to_9502112387.pdf",
	}
	archive := buildArchive(t, filenames)

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	gw := &fakeGateway{}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(true), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("Run() processed %d batches, want 1", len(batches))
	}

	batch := batches[0]
	if !batch.Completed {
		t.Fatal("batch should be completed")
	}
	if batch.TotalItems() != 3 || batch.SentItems() != 3 {
		t.Fatalf("counts = total %d sent %d, want 3/3", batch.TotalItems(), batch.SentItems())
	}
	if len(gw.sent) != 3 {
		t.Fatalf("gateway received %d dispatches, want 3", len(gw.sent))
	}

	target, ok := shareClient.get("outgoing", archiveName)
	if !ok {
		t.Fatal("reduced archive missing from target path")
	}

	doc, entries := openArchiveIndex(t, target)
	if len(entries) != 1 || entries[0].Name != archiveindex.DocumentName {
		t.Fatalf("repacked container entries = %d, want only the index document", len(entries))
	}
	if doc.RecordCount() != 0 {
		t.Fatalf("RecordCount() = %d, want 0", doc.RecordCount())
	}

	if _, ok := shareClient.get("incoming", archiveName); ok {
		t.Fatal("source file should be deleted after processing")
	}
	if archived, ok := shareClient.get("archived", archiveName); !ok || !bytes.Equal(archived, archive) {
		t.Fatal("archived copy should be byte-identical to the source input")
	}

	if len(store.batches) != 1 {
		t.Fatalf("store received %d batches, want 1", len(store.batches))
	}
}

func TestRunRetainsUnsentItem(t *testing.T) {
	t.Parallel()

	unsent := "faktura_4_to_8701162382.pdf" // bad check digit
	filenames := []string{
		"faktura_1_to_8701162383.pdf",
		"faktura_2_to_8701162383.pdf",
		"faktura_3_to_9502112387.pdf",
		unsent,
	}
	archive := buildArchive(t, filenames)

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	gw := &fakeGateway{}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(true), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("Run() processed %d batches, want 1", len(batches))
	}

	batch := batches[0]
	if batch.TotalItems() != 4 || batch.SentItems() != 3 {
		t.Fatalf("counts = total %d sent %d, want 4/3", batch.TotalItems(), batch.SentItems())
	}

	var unsentItem *domain.Item
	for i := range batch.Items {
		if batch.Items[i].Filename == unsent {
			unsentItem = &batch.Items[i]
		}
	}
	if unsentItem == nil {
		t.Fatal("unsent item missing from batch")
	}
	if unsentItem.Status != domain.StatusLegalIDNotFoundOrInvalid {
		t.Fatalf("unsent item status = %s, want %s", unsentItem.Status, domain.StatusLegalIDNotFoundOrInvalid)
	}

	target, ok := shareClient.get("outgoing", archiveName)
	if !ok {
		t.Fatal("reduced archive missing from target path")
	}

	doc, entries := openArchiveIndex(t, target)
	if doc.RecordCount() != 1 {
		t.Fatalf("RecordCount() = %d, want 1", doc.RecordCount())
	}
	if _, ok := doc.Find(unsent); !ok {
		t.Fatal("index should retain the record of the unsent item")
	}
	if _, ok := codec.Find(entries, unsent); !ok {
		t.Fatal("container should retain the unsent item")
	}
	if len(entries) != 2 {
		t.Fatalf("repacked container entries = %d, want 2", len(entries))
	}

	if archived, ok := shareClient.get("archived", archiveName); !ok || !bytes.Equal(archived, archive) {
		t.Fatal("archived copy should be byte-identical to the source input")
	}
}

func TestRunProcessingDisabledForwardsUntouched(t *testing.T) {
	t.Parallel()

	archive := buildArchive(t, []string{"faktura_1_to_8701162383.pdf"})

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	gw := &fakeGateway{}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(false), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("Run() processed %d batches, want 1", len(batches))
	}

	if batches[0].SentItems() != 0 {
		t.Fatalf("SentItems() = %d, want 0", batches[0].SentItems())
	}
	if len(gw.sent) != 0 {
		t.Fatalf("gateway received %d dispatches, want 0", len(gw.sent))
	}

	target, ok := shareClient.get("outgoing", archiveName)
	if !ok {
		t.Fatal("forwarded archive missing from target path")
	}
	if !bytes.Equal(target, archive) {
		t.Fatal("forwarded archive should be byte-identical to the original input")
	}

	if _, ok := shareClient.get("incoming", archiveName); ok {
		t.Fatal("source file should be deleted after forwarding")
	}
}

func TestRunDispatchFailureKeepsItem(t *testing.T) {
	t.Parallel()

	failing := "faktura_2_to_9502112387.pdf"
	filenames := []string{"faktura_1_to_8701162383.pdf", failing}
	archive := buildArchive(t, filenames)

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	gw := &fakeGateway{failFile: failing}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(true), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	batch := batches[0]
	if batch.SentItems() != 1 {
		t.Fatalf("SentItems() = %d, want 1", batch.SentItems())
	}

	var failed *domain.Item
	for i := range batch.Items {
		if batch.Items[i].Filename == failing {
			failed = &batch.Items[i]
		}
	}
	if failed == nil {
		t.Fatal("failing item missing from batch")
	}
	if failed.Status != domain.StatusNotSent {
		t.Fatalf("failing item status = %s, want %s", failed.Status, domain.StatusNotSent)
	}

	target, _ := shareClient.get("outgoing", archiveName)
	doc, entries := openArchiveIndex(t, target)
	if doc.RecordCount() != 1 {
		t.Fatalf("RecordCount() = %d, want 1", doc.RecordCount())
	}
	if _, ok := codec.Find(entries, failing); !ok {
		t.Fatal("container should retain the item that failed to dispatch")
	}
}

func TestRunProtectedIdentityWithheld(t *testing.T) {
	t.Parallel()

	protectedFile := "faktura_1_to_8701162383.pdf"
	archive := buildArchive(t, []string{protectedFile})

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	identity := &fakeIdentityClient{protected: map[string]bool{
		recipient.FullLegalID("8701162383"): true,
	}}
	resolver := recipient.NewResolver(identity, &fakePartyClient{}, nil)

	gw := &fakeGateway{}
	store := &fakeStore{}
	p, err := New(shareClient, resolver, gw, nil, store, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(true), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	batch := batches[0]
	if batch.SentItems() != 0 {
		t.Fatalf("SentItems() = %d, want 0", batch.SentItems())
	}
	if got := batch.Items[1].Status; got != domain.StatusLegalIDNotFoundOrInvalid {
		t.Fatalf("protected item status = %s, want %s", got, domain.StatusLegalIDNotFoundOrInvalid)
	}
	if len(gw.sent) != 0 {
		t.Fatalf("gateway received %d dispatches, want 0", len(gw.sent))
	}
}

func TestProcessBatchCorruptArchiveIsFatal(t *testing.T) {
	t.Parallel()

	shareClient := newFakeShare()
	gw := &fakeGateway{}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	source := testSource(true)
	batch := &domain.Batch{
		ID:                "b1",
		Filename:          "faktura-240115_01.zip.lzma",
		Municipality:      source.Municipality,
		BatchName:         source.BatchName,
		SourcePath:        source.SourcePath,
		TargetPath:        source.TargetPath,
		ArchivePath:       source.ArchivePath,
		Raw:               []byte("definitely not lzma"),
		ProcessingEnabled: true,
		StartedAt:         time.Now(),
	}

	err := p.ProcessBatch(context.Background(), source, batch)
	if err == nil {
		t.Fatal("expected error for corrupt archive")
	}

	var codecErr *codec.CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected CodecError, got %T", err)
	}

	if batch.Completed {
		t.Fatal("batch must not be marked completed")
	}
	if _, ok := shareClient.get("outgoing", batch.Filename); ok {
		t.Fatal("no partial write-back may occur on a format error")
	}
	if len(store.batches) != 0 {
		t.Fatal("failed batch must not be persisted as completed")
	}
}

func TestProcessBatchIncompleteMetadata(t *testing.T) {
	t.Parallel()

	// Index record without a due date.
	indexXML := `<?xml version="1.0" encoding="ISO-8859-1"?>
<files>
  <file>
    <filename>faktura_1_to_8701162383.pdf</filename>
    <invoicenumber>1000</invoicenumber>
    <invoicedate>2024-03-01</invoicedate>
    <duedate></duedate>
    <paymentreference>555000</paymentreference>
    <accountnumber>5050-1055</accountnumber>
    <totalamount>1250.50</totalamount>
    <agf>01</agf>
    <reminder>0</reminder>
  </file>
</files>
`
	indexBytes, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(indexXML))
	if err != nil {
		t.Fatalf("failed to encode index: %v", err)
	}

	container, err := codec.Pack([]codec.Entry{
		{Name: archiveindex.DocumentName, Data: indexBytes},
		{Name: "faktura_1_to_8701162383.pdf", Data: []byte("%PDF")},
	})
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	archive, err := codec.Compress(container)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	shareClient := newFakeShare()
	archiveName := "faktura-240115_01.zip.lzma"
	if err := shareClient.Write(context.Background(), "incoming", archiveName, archive); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	gw := &fakeGateway{}
	store := &fakeStore{}
	p := newTestPipeline(t, shareClient, gw, store)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	batches, err := p.Run(context.Background(), testSource(true), date)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	batch := batches[0]
	if got := batch.Items[1].Status; got != domain.StatusMetadataIncomplete {
		t.Fatalf("item status = %s, want %s", got, domain.StatusMetadataIncomplete)
	}
	if len(gw.sent) != 0 {
		t.Fatalf("gateway received %d dispatches, want 0", len(gw.sent))
	}
}

func TestNewValidatesCollaborators(t *testing.T) {
	t.Parallel()

	resolver := recipient.NewResolver(&fakeIdentityClient{}, &fakePartyClient{}, nil)
	shareClient := newFakeShare()
	gw := &fakeGateway{}
	store := &fakeStore{}

	if _, err := New(nil, resolver, gw, nil, store, nil); err == nil {
		t.Fatal("expected error for nil share client")
	}
	if _, err := New(shareClient, nil, gw, nil, store, nil); err == nil {
		t.Fatal("expected error for nil resolver")
	}
	if _, err := New(shareClient, resolver, nil, nil, store, nil); err == nil {
		t.Fatal("expected error for nil gateway")
	}
	if _, err := New(shareClient, resolver, gw, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
