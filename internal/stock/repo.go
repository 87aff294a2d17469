package stock

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
)

// Reader exposes the read-only stock projection.
type Reader interface {
	Snapshot(ctx context.Context) ([]models.StockLine, error)
}

// Repository reads view_inventory_stock. It never writes.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a stock repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Snapshot returns every stock line ordered by description.
func (r *Repository) Snapshot(ctx context.Context) ([]models.StockLine, error) {
	var lines []models.StockLine
	if err := r.db.WithContext(ctx).
		Order("description ASC").
		Order("code ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i] = clamp(lines[i])
	}
	return lines, nil
}

// Lookup returns the stock line for code, or nil when the code is unknown.
func (r *Repository) Lookup(ctx context.Context, code string) (*models.StockLine, error) {
	var line models.StockLine
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	line = clamp(line)
	return &line, nil
}

// exits recorded beyond the entries would project a negative balance
func clamp(line models.StockLine) models.StockLine {
	if line.Quantity < 0 {
		line.Quantity = 0
	}
	return line
}
