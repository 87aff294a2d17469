package users

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// ProfileDTO is the requester identity attached to reviewer listings.
type ProfileDTO struct {
	ID          uuid.UUID      `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
}

// CreateProfileDTO holds the data required to persist a profile.
type CreateProfileDTO struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
	Role        enums.UserRole
}

func (dto CreateProfileDTO) ToModel() *models.Profile {
	id := dto.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &models.Profile{
		ID:          id,
		DisplayName: strings.TrimSpace(dto.DisplayName),
		Email:       strings.ToLower(strings.TrimSpace(dto.Email)),
		Role:        dto.Role,
	}
}

func FromModel(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Role:        p.Role,
	}
}

// DisplayNameOr returns the profile's display name, or fallback when the
// profile is missing or unnamed.
func DisplayNameOr(p *models.Profile, fallback string) string {
	if p == nil {
		return fallback
	}
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return fallback
}
