package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

// Repository manages persistence for stock-exit rows. Exits are append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, exit *models.InventoryExit) (int64, error)
	FindByRequestItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryExit, error)
	ListByCode(ctx context.Context, code string) ([]models.InventoryExit, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an exit ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert appends the exit and reports the affected row count.
func (r *repository) Insert(ctx context.Context, exit *models.InventoryExit) (int64, error) {
	result := r.db.WithContext(ctx).Create(exit)
	return result.RowsAffected, result.Error
}

func (r *repository) FindByRequestItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryExit, error) {
	var exit models.InventoryExit
	err := r.db.WithContext(ctx).Where("request_item_id = ?", itemID).Take(&exit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exit, nil
}

func (r *repository) ListByCode(ctx context.Context, code string) ([]models.InventoryExit, error) {
	var exits []models.InventoryExit
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at ASC").
		Find(&exits).Error; err != nil {
		return nil, err
	}
	return exits, nil
}
