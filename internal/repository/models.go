package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Filename     string `gorm:"type:varchar(255);not null"`
	Municipality string `gorm:"type:varchar(10);not null;index"`
	BatchName    string `gorm:"type:varchar(100);not null"`
	Date         time.Time
	TotalItems   int  `gorm:"not null"`
	SentItems    int  `gorm:"not null"`
	IgnoredItems int  `gorm:"not null"`
	Processed    bool `gorm:"not null"`
	Completed    bool `gorm:"not null"`
	StartedAt    time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// ItemModel is the persistence model for batch_items.
type ItemModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	BatchID       string `gorm:"type:uuid;not null;index"`
	Filename      string `gorm:"type:varchar(255);not null"`
	ItemType      string `gorm:"type:varchar(10);not null"`
	Status        string `gorm:"type:varchar(50);not null"`
	LegalID       string `gorm:"type:varchar(20)"`
	PartyID       string `gorm:"type:varchar(100)"`
	InvoiceNumber string `gorm:"type:varchar(50)"`
	DueDate       string `gorm:"type:varchar(20)"`
	TotalAmount   string `gorm:"type:varchar(20)"`
	CreatedAt     time.Time
}

func (ItemModel) TableName() string {
	return "batch_items"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:           b.ID,
		Filename:     b.Filename,
		Municipality: b.Municipality.String(),
		BatchName:    b.BatchName,
		Date:         b.Date,
		TotalItems:   b.TotalItems(),
		SentItems:    b.SentItems(),
		IgnoredItems: b.IgnoredItems(),
		Processed:    b.ProcessingEnabled,
		Completed:    b.Completed,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
	}
}

func batchModelToSummary(m *BatchModel) *domain.BatchSummary {
	if m == nil {
		return nil
	}

	return &domain.BatchSummary{
		ID:           m.ID,
		Filename:     m.Filename,
		Municipality: domain.MunicipalityID(m.Municipality),
		BatchName:    m.BatchName,
		Date:         m.Date,
		TotalItems:   m.TotalItems,
		SentItems:    m.SentItems,
		IgnoredItems: m.IgnoredItems,
		Completed:    m.Completed,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}

func itemModelsFromDomain(batchID string, items []domain.Item) []ItemModel {
	models := make([]ItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, ItemModel{
			ID:            uuid.NewString(),
			BatchID:       batchID,
			Filename:      item.Filename,
			ItemType:      item.Type.String(),
			Status:        item.Status.String(),
			LegalID:       item.LegalID,
			PartyID:       item.PartyID,
			InvoiceNumber: item.Metadata.InvoiceNumber,
			DueDate:       item.Metadata.DueDate,
			TotalAmount:   item.Metadata.TotalAmount,
		})
	}
	return models
}
