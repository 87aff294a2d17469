package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryExit is an append-only stock-exit ledger row. RequestItemID links
// exits written by approvals back to their item; it is unique when set.
type InventoryExit struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code           string     `gorm:"column:code;not null"`
	ExitDate       time.Time  `gorm:"column:exit_date;type:date;not null"`
	DocumentType   string     `gorm:"column:document_type;not null"`
	RequestingArea string     `gorm:"column:requesting_area;not null"`
	Description    string     `gorm:"column:description;not null"`
	Unit           string     `gorm:"column:unit;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	Authorizer     string     `gorm:"column:authorizer;not null"`
	Receiver       string     `gorm:"column:receiver;not null"`
	Reason         string     `gorm:"column:reason;not null"`
	RequestItemID  *uuid.UUID `gorm:"column:request_item_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryExit) TableName() string { return "inventory_exits" }
