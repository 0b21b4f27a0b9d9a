// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/models"
)

// ToMemberProfileDTO converts a member model to its API representation
func ToMemberProfileDTO(m *models.Member) dto.MemberProfileDTO {
	return dto.MemberProfileDTO{
		ID:                 m.ID,
		UUID:               m.UUID.String(),
		Email:              m.Email,
		FullName:           m.FullName,
		Phone:              m.Phone,
		Department:         m.Department,
		YearOfStudy:        m.YearOfStudy,
		RollNumber:         m.RollNumber,
		Role:               m.Role,
		IsActive:           m.IsActive,
		UniqueID:           m.UniqueID,
		UniqueIDAssignedAt: m.UniqueIDAssignedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
