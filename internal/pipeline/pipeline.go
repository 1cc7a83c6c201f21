// Package pipeline orchestrates one batch run: acquire the archive from the
// share, decode it, walk every item through the status lifecycle, dispatch
// deliverable invoices, and write the reduced archive back. Item processing
// inside one batch is strictly sequential; the archive index is a shared
// document owned by the running invocation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarlsson/invoice-relay/internal/archiveindex"
	"github.com/mkarlsson/invoice-relay/internal/classify"
	"github.com/mkarlsson/invoice-relay/internal/codec"
	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/gateway"
	"github.com/mkarlsson/invoice-relay/internal/ratelimit"
	"github.com/mkarlsson/invoice-relay/internal/recipient"
	"github.com/mkarlsson/invoice-relay/internal/share"
)

const (
	invoiceContentType      = "application/pdf"
	paymentReferenceTypeOCR = "OCR"
	accountTypeBankgiro     = "BANKGIRO"
)

// Store persists batch and item execution history once a run finishes.
type Store interface {
	SaveBatch(ctx context.Context, batch *domain.Batch) error
}

// Pipeline processes invoice batches for one or more configured sources.
type Pipeline struct {
	share    share.Share
	resolver *recipient.Resolver
	gateway  gateway.Gateway
	limiter  ratelimit.RateLimiter
	store    Store
	logger   *zap.Logger
}

// New builds a pipeline. The rate limiter is optional; every other
// collaborator is required.
func New(
	shareClient share.Share,
	resolver *recipient.Resolver,
	gw gateway.Gateway,
	limiter ratelimit.RateLimiter,
	store Store,
	logger *zap.Logger,
) (*Pipeline, error) {
	if shareClient == nil {
		return nil, fmt.Errorf("share client is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("recipient resolver is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		share:    shareClient,
		resolver: resolver,
		gateway:  gw,
		limiter:  limiter,
		store:    store,
		logger:   logger,
	}, nil
}

// Run acquires and processes every candidate archive for the given source
// and date. It returns all batches attempted; a batch that failed with a
// format error is returned with Completed=false and the rest continue. The
// error return covers acquisition only.
func (p *Pipeline) Run(ctx context.Context, source domain.BatchSource, date time.Time) ([]*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := source.Validate(); err != nil {
		return nil, err
	}

	candidates, err := p.listCandidates(ctx, source, date)
	if err != nil {
		return nil, err
	}

	batches := make([]*domain.Batch, 0, len(candidates))
	for _, name := range candidates {
		batch, err := p.fetchBatch(ctx, source, name, date)
		if err != nil {
			p.logger.Error("failed to fetch batch archive",
				zap.String("municipality", source.Municipality.String()),
				zap.String("batchName", source.BatchName),
				zap.String("filename", name),
				zap.Error(err),
			)
			continue
		}

		if err := p.ProcessBatch(ctx, source, batch); err != nil {
			p.logger.Error("batch processing failed",
				zap.String("municipality", source.Municipality.String()),
				zap.String("batchId", batch.ID),
				zap.String("filename", batch.Filename),
				zap.Error(err),
			)
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

func (p *Pipeline) fetchBatch(ctx context.Context, source domain.BatchSource, name string, date time.Time) (*domain.Batch, error) {
	raw, err := p.share.Read(ctx, source.SourcePath, name)
	if err != nil {
		return nil, err
	}

	return &domain.Batch{
		ID:                uuid.NewString(),
		Filename:          name,
		Municipality:      source.Municipality,
		BatchName:         source.BatchName,
		Date:              date,
		SourcePath:        source.SourcePath,
		TargetPath:        source.TargetPath,
		ArchivePath:       source.ArchivePath,
		Raw:               raw,
		ProcessingEnabled: source.Enabled,
		StartedAt:         time.Now(),
	}, nil
}

// ProcessBatch runs the full item lifecycle over one acquired batch.
// A format error (corrupt stream, malformed container, unparsable index)
// is fatal for the batch: nothing is written back and the batch stays
// uncompleted. Lookup and dispatch failures degrade to per-item terminal
// statuses and never abort the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, source domain.BatchSource, batch *domain.Batch) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !batch.ProcessingEnabled {
		return p.forwardUntouched(ctx, batch)
	}

	container, err := codec.Decompress(batch.Raw)
	if err != nil {
		return fmt.Errorf("decompressing batch %s: %w", batch.Filename, err)
	}

	entries, err := codec.Unpack(container)
	if err != nil {
		return fmt.Errorf("unpacking batch %s: %w", batch.Filename, err)
	}

	indexEntry, ok := codec.Find(entries, archiveindex.DocumentName)
	if !ok {
		return fmt.Errorf("batch %s has no index document", batch.Filename)
	}

	index, err := archiveindex.Parse(indexEntry.Data)
	if err != nil {
		return fmt.Errorf("parsing index of batch %s: %w", batch.Filename, err)
	}

	classifier := classify.New(source.RequiredPrefixes)

	batch.Items = make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		item := domain.NewItem(entry.Name, entry.Data)
		itemType, status := classifier.Classify(entry.Name)
		batch.Items = append(batch.Items, item.WithType(itemType).WithStatus(status))
	}

	for i, item := range batch.Items {
		batch.ReplaceItem(i, p.processItem(ctx, source, index, item))
	}

	if err := p.writeBack(ctx, batch, index); err != nil {
		return err
	}

	now := time.Now()
	batch.Completed = true
	batch.CompletedAt = &now

	p.logger.Info("batch processed",
		zap.String("municipality", batch.Municipality.String()),
		zap.String("batchId", batch.ID),
		zap.String("filename", batch.Filename),
		zap.Int("totalItems", batch.TotalItems()),
		zap.Int("sentItems", batch.SentItems()),
		zap.Int("ignoredItems", batch.IgnoredItems()),
	)

	if err := p.store.SaveBatch(ctx, batch); err != nil {
		p.logger.Warn("failed to persist batch record",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}

	if err := p.retireSource(ctx, batch); err != nil {
		return err
	}

	batch.Release()
	return nil
}

// processItem advances one item through the lifecycle stages in order.
// Every stage is a no-op once the item is terminal.
func (p *Pipeline) processItem(ctx context.Context, source domain.BatchSource, index *archiveindex.Document, item domain.Item) domain.Item {
	item = p.extractMetadata(index, item)
	item = p.resolver.ResolveLegalID(item)
	item = p.resolver.CheckProtection(ctx, item)
	item = p.resolver.ResolveParty(ctx, item, source.Municipality)
	item = p.dispatch(ctx, source, index, item)
	return item
}

func (p *Pipeline) extractMetadata(index *archiveindex.Document, item domain.Item) domain.Item {
	if !item.IsProcessable() {
		return item
	}

	record, _ := index.Find(item.Filename)
	metadata := record.Metadata()
	item = item.WithMetadata(metadata)

	if !metadata.IsComplete() {
		p.logger.Info("invoice metadata incomplete",
			zap.String("filename", item.Filename),
		)
		return item.WithStatus(domain.StatusMetadataIncomplete)
	}

	return item
}

func (p *Pipeline) dispatch(ctx context.Context, source domain.BatchSource, index *archiveindex.Document, item domain.Item) domain.Item {
	if !item.IsProcessable() {
		return item
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, source.Municipality.String()); err != nil {
			p.logger.Warn("rate limiter wait failed, dispatching anyway",
				zap.String("municipality", source.Municipality.String()),
				zap.Error(err),
			)
		}
	}

	req := gateway.DispatchRequest{
		Subject:              source.Subject,
		PartyID:              item.PartyID,
		Reference:            source.ReferencePrefix + item.Metadata.InvoiceNumber,
		Payable:              item.Metadata.Payable,
		DueDate:              item.Metadata.DueDate,
		PaymentReference:     item.Metadata.PaymentReference,
		PaymentReferenceType: paymentReferenceTypeOCR,
		AccountNumber:        item.Metadata.AccountNumber,
		AccountType:          accountTypeBankgiro,
		Amount:               item.Metadata.TotalAmount,
		File: gateway.InvoiceFile{
			Name:        item.Filename,
			ContentType: invoiceContentType,
			Content:     item.Content,
		},
	}

	receipt, err := p.gateway.Send(ctx, req)
	if err != nil {
		p.logger.Warn("invoice dispatch failed",
			zap.String("filename", item.Filename),
			zap.String("legalId", recipient.MaskLegalID(item.LegalID)),
			zap.Bool("transient", gateway.IsTransient(err)),
			zap.Error(err),
		)
		return item.WithStatus(domain.StatusNotSent)
	}

	p.logger.Info("invoice dispatched",
		zap.String("filename", item.Filename),
		zap.String("messageId", receipt.MessageID),
		zap.Int("statusCode", receipt.StatusCode),
	)

	index.Remove(item.Filename)
	return item.WithStatus(domain.StatusSent)
}

// writeBack repacks the container from the items that were not sent plus
// the mutated index document, recompresses it, and writes the reduced
// archive to the target path.
func (p *Pipeline) writeBack(ctx context.Context, batch *domain.Batch, index *archiveindex.Document) error {
	indexBytes, err := index.Bytes()
	if err != nil {
		return fmt.Errorf("serializing index of batch %s: %w", batch.Filename, err)
	}

	entries := make([]codec.Entry, 0, len(batch.Items))
	for _, item := range batch.Items {
		if item.Filename == archiveindex.DocumentName {
			entries = append(entries, codec.Entry{Name: item.Filename, Data: indexBytes})
			continue
		}
		if item.IsSent() {
			continue
		}
		entries = append(entries, codec.Entry{Name: item.Filename, Data: item.Content})
	}

	container, err := codec.Pack(entries)
	if err != nil {
		return fmt.Errorf("packing batch %s: %w", batch.Filename, err)
	}

	compressed, err := codec.Compress(container)
	if err != nil {
		return fmt.Errorf("compressing batch %s: %w", batch.Filename, err)
	}

	if err := p.share.Write(ctx, batch.TargetPath, batch.Filename, compressed); err != nil {
		return fmt.Errorf("writing batch %s to target: %w", batch.Filename, err)
	}

	return nil
}

// forwardUntouched handles a source with processing disabled: the original
// bytes are passed through to the target unchanged and no item is ever
// dispatched.
func (p *Pipeline) forwardUntouched(ctx context.Context, batch *domain.Batch) error {
	p.logger.Info("batch processing disabled, forwarding archive untouched",
		zap.String("municipality", batch.Municipality.String()),
		zap.String("filename", batch.Filename),
	)

	if err := p.share.Write(ctx, batch.TargetPath, batch.Filename, batch.Raw); err != nil {
		return fmt.Errorf("forwarding batch %s to target: %w", batch.Filename, err)
	}

	now := time.Now()
	batch.Completed = true
	batch.CompletedAt = &now

	if err := p.store.SaveBatch(ctx, batch); err != nil {
		p.logger.Warn("failed to persist batch record",
			zap.String("batchId", batch.ID),
			zap.Error(err),
		)
	}

	if err := p.retireSource(ctx, batch); err != nil {
		return err
	}

	batch.Release()
	return nil
}

// retireSource copies the original archive bytes to the archive path and
// removes the source file. Once the source is gone there is no redelivery.
func (p *Pipeline) retireSource(ctx context.Context, batch *domain.Batch) error {
	if err := p.share.Write(ctx, batch.ArchivePath, batch.Filename, batch.Raw); err != nil {
		return fmt.Errorf("archiving batch %s: %w", batch.Filename, err)
	}

	if err := p.share.Delete(ctx, batch.SourcePath, batch.Filename); err != nil {
		return fmt.Errorf("deleting source of batch %s: %w", batch.Filename, err)
	}

	return nil
}
