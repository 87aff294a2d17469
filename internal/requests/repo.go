package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

// Repository defines persistence operations for request headers and items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRequest(ctx context.Context, req *models.Request) error
	CreateItems(ctx context.Context, items []models.RequestItem) error
	FindRequest(ctx context.Context, id uuid.UUID, withRequester bool) (*models.Request, error)
	DeletePendingItems(ctx context.Context, requestID uuid.UUID) (int64, error)
	TouchRequest(ctx context.Context, requestID uuid.UUID, at time.Time) error
	ListRequests(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Request, error)
}

// ListFilter narrows request listings. A nil RequesterID lists everything.
type ListFilter struct {
	RequesterID   *uuid.UUID
	WithRequester bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a requests repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRequest(ctx context.Context, req *models.Request) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.RequestItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID, withRequester bool) (*models.Request, error) {
	var req models.Request
	query := r.db.WithContext(ctx).Preload("Items", orderItems)
	if withRequester {
		query = query.Preload("Requester")
	}
	if err := query.First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// DeletePendingItems removes the request's items that are still pending and
// reports how many rows went away.
func (r *repository) DeletePendingItems(ctx context.Context, requestID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, enums.ItemStatusPending).
		Delete(&models.RequestItem{})
	return result.RowsAffected, result.Error
}

func (r *repository) TouchRequest(ctx context.Context, requestID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", requestID).
		UpdateColumn("updated_at", at).Error
}

func (r *repository) ListRequests(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Request, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Preload("Items", orderItems)
	if filter.WithRequester {
		query = query.Preload("Requester")
	}
	if filter.RequesterID != nil {
		query = query.Where("requester_id = ?", *filter.RequesterID)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Request
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
