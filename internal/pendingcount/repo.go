package pendingcount

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// Counter runs the authoritative pending-request count.
type Counter interface {
	CountPending(ctx context.Context) (int64, error)
}

// Repository counts requests that have at least one item and whose items are
// all still pending.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const pendingCountQuery = `
SELECT COUNT(*) FROM product_requests r
WHERE EXISTS (
	SELECT 1 FROM product_request_items i WHERE i.request_id = r.id
)
AND NOT EXISTS (
	SELECT 1 FROM product_request_items i WHERE i.request_id = r.id AND i.status <> ?
)`

func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(pendingCountQuery, enums.ItemStatusPending).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
