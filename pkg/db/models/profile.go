package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// Profile is the identity provider's projection of a user: who they are and
// which role tag they carry.
type Profile struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DisplayName string         `gorm:"column:display_name;not null" json:"display_name"`
	Email       string         `gorm:"column:email;not null" json:"email"`
	Role        enums.UserRole `gorm:"column:role;not null" json:"role"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }
