package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/stock"
	"github.com/angelmondragon/stockroom-backend/internal/users"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// Repository reads what a decision needs and applies the guarded status flip.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.RequestItem, error)
	FindRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	FindProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	LookupStock(ctx context.Context, code string) (*models.StockLine, error)
	Decide(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus, reviewerID uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db    *gorm.DB
	stock *stock.Repository
	users *users.Repository
}

// NewRepository returns an approvals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db:    db,
		stock: stock.NewRepository(db),
		users: users.NewRepository(db),
	}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.RequestItem, error) {
	var item models.RequestItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	var req models.Request
	if err := r.db.WithContext(ctx).
		Preload("Requester").
		First(&req, "id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindProfile returns nil when the profile does not exist.
func (r *repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := r.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return profile, err
}

func (r *repository) LookupStock(ctx context.Context, code string) (*models.StockLine, error) {
	return r.stock.Lookup(ctx, code)
}

// Decide moves a pending item to a terminal status. Zero affected rows means
// the item was not pending when the update ran.
func (r *repository) Decide(ctx context.Context, itemID uuid.UUID, status enums.ItemStatus, reviewerID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RequestItem{}).
		Where("id = ? AND status = ?", itemID, enums.ItemStatusPending).
		UpdateColumns(map[string]any{
			"status":      status,
			"reviewed_at": at,
			"reviewed_by": reviewerID,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
