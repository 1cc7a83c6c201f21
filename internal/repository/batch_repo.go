package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// BatchFilter narrows and pages a batch history listing.
type BatchFilter struct {
	From         *time.Time
	To           *time.Time
	Municipality string
	Page         int
	PageSize     int
}

func (f BatchFilter) normalized() BatchFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// BatchRepository persists and reads back batch execution history.
type BatchRepository interface {
	SaveBatch(ctx context.Context, b *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.BatchSummary, error)
	List(ctx context.Context, filter BatchFilter) ([]*domain.BatchSummary, int64, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

// SaveBatch writes the batch record and its item records in one
// transaction.
func (r *GormBatchRepo) SaveBatch(ctx context.Context, b *domain.Batch) error {
	if b == nil {
		return nil
	}

	model := batchModelFromDomain(b)
	items := itemModelsFromDomain(b.ID, b.Items)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id string) (*domain.BatchSummary, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return batchModelToSummary(&model), nil
}

// List returns one page of batch summaries, newest first, together with
// the unpaged total count.
func (r *GormBatchRepo) List(ctx context.Context, filter BatchFilter) ([]*domain.BatchSummary, int64, error) {
	filter = filter.normalized()

	query := r.db.WithContext(ctx).Model(&BatchModel{})
	if filter.From != nil {
		query = query.Where("started_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("started_at <= ?", *filter.To)
	}
	if filter.Municipality != "" {
		query = query.Where("municipality = ?", filter.Municipality)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []BatchModel
	err := query.
		Order("started_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]*domain.BatchSummary, 0, len(models))
	for i := range models {
		summaries = append(summaries, batchModelToSummary(&models[i]))
	}

	return summaries, total, nil
}
