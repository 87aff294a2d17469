package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// RequestItem is one requested line. QuantityRequested is fixed at insert.
type RequestItem struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	RequestID         uuid.UUID        `gorm:"column:request_id;type:uuid;not null"`
	Position          int              `gorm:"column:position;not null"`
	ProductCode       *string          `gorm:"column:product_code"`
	ProductName       string           `gorm:"column:product_name;not null"`
	QuantityRequested int              `gorm:"column:quantity_requested;not null"`
	IsNewProduct      bool             `gorm:"column:is_new_product;not null;default:false"`
	Description       *string          `gorm:"column:description"`
	Status            enums.ItemStatus `gorm:"column:status;not null;default:PENDING"`
	ReviewedAt        *time.Time       `gorm:"column:reviewed_at"`
	ReviewedBy        *uuid.UUID       `gorm:"column:reviewed_by;type:uuid"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (RequestItem) TableName() string { return "product_request_items" }
