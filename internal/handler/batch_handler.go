package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

type BatchHandler struct {
	batches repository.BatchRepository
}

func NewBatchHandler(batches repository.BatchRepository) (*BatchHandler, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	return &BatchHandler{batches: batches}, nil
}

func RegisterBatchRoutes(router fiber.Router, batches repository.BatchRepository) error {
	h, err := NewBatchHandler(batches)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/batches", h.ListBatches)
	v1.Get("/batches/:id", h.GetBatch)

	return nil
}

type batchResponse struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	Municipality string     `json:"municipality"`
	BatchName    string     `json:"batchName"`
	Date         time.Time  `json:"date"`
	TotalItems   int        `json:"totalItems"`
	SentItems    int        `json:"sentItems"`
	IgnoredItems int        `json:"ignoredItems"`
	Completed    bool       `json:"completed"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type listBatchesResponse struct {
	Data []batchResponse `json:"data"`
	Meta listMeta        `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	filter, err := parseBatchFilter(c)
	if err != nil {
		return toHTTPError(err)
	}

	summaries, total, err := h.batches.List(c.Context(), filter)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]batchResponse, 0, len(summaries))
	for _, summary := range summaries {
		data = append(data, toBatchResponse(summary))
	}

	return c.Status(fiber.StatusOK).JSON(listBatchesResponse{
		Data: data,
		Meta: listMeta{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Total:    total,
		},
	})
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	summary, err := h.batches.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(summary))
}

func parseBatchFilter(c *fiber.Ctx) (repository.BatchFilter, error) {
	filter := repository.BatchFilter{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if filter.Page < 1 {
		return repository.BatchFilter{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if filter.PageSize < 1 || filter.PageSize > maxPageSize {
		return repository.BatchFilter{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	filter.Municipality = strings.TrimSpace(c.Query("municipality"))

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.BatchFilter{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.BatchFilter{}, err
	}
	filter.From = from
	filter.To = to

	return filter, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toBatchResponse(summary *domain.BatchSummary) batchResponse {
	if summary == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:           summary.ID,
		Filename:     summary.Filename,
		Municipality: summary.Municipality.String(),
		BatchName:    summary.BatchName,
		Date:         summary.Date,
		TotalItems:   summary.TotalItems,
		SentItems:    summary.SentItems,
		IgnoredItems: summary.IgnoredItems,
		Completed:    summary.Completed,
		StartedAt:    summary.StartedAt,
		CompletedAt:  summary.CompletedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
