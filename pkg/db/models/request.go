package models

import (
	"time"

	"github.com/google/uuid"
)

// Request is a header grouping the items submitted by one requester. Its
// status is derived from Items on every read and never stored.
type Request struct {
	ID          uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	RequesterID uuid.UUID     `gorm:"column:requester_id;type:uuid;not null"`
	Code        *string       `gorm:"column:request_code"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime"`
	Items       []RequestItem `gorm:"foreignKey:RequestID;references:ID"`
	Requester   *Profile      `gorm:"foreignKey:RequesterID;references:ID"`
}

func (Request) TableName() string { return "product_requests" }
