package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryEntry is a stock-entry ledger row. Entries are maintained outside
// the request engine; the stock view sums them against exits.
type InventoryEntry struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code        string    `gorm:"column:code;not null"`
	EntryDate   time.Time `gorm:"column:entry_date;type:date;not null"`
	Description string    `gorm:"column:description;not null"`
	Unit        string    `gorm:"column:unit;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryEntry) TableName() string { return "inventory_entries" }
