// Package models contains domain entities for the club portal
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Member roles
const (
	MemberRoleMember = "member"
	MemberRoleGuest  = "guest"
	MemberRoleAdmin  = "admin"
)

const (
	MinYearOfStudy = 1
	MaxYearOfStudy = 6
)

type Member struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_members_uuid" json:"uuid"`
	Email       string    `gorm:"size:255;not null;uniqueIndex:uk_members_email" json:"email"`
	FullName    string    `gorm:"size:255" json:"full_name"`
	Phone       *string   `gorm:"size:20" json:"phone,omitempty"`
	Department  *string   `gorm:"size:120" json:"department,omitempty"`
	YearOfStudy *int      `json:"year_of_study,omitempty"`
	RollNumber  *string   `gorm:"size:40" json:"roll_number,omitempty"`
	Role        string    `gorm:"size:20;not null;default:member;index:idx_members_role" json:"role"`
	IsActive    *bool     `gorm:"default:true;index:idx_members_is_active" json:"is_active"`

	// UniqueID is set once by the allocator and never changes afterwards
	UniqueID           *string    `gorm:"size:64;uniqueIndex:uk_members_unique_id" json:"unique_id,omitempty"`
	UniqueIDAssignedAt *time.Time `json:"unique_id_assigned_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_members_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// MemberFilter represents filter criteria for member queries
type MemberFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Email           *string
	Role            *string
	IsActive        *bool
	UniqueID        *string
	HasUniqueID     *bool
	ProfileComplete *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

// MissingProfileFields lists the required profile fields that are still empty.
func (m *Member) MissingProfileFields() []string {
	var missing []string
	if strings.TrimSpace(m.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(m.Email) == "" {
		missing = append(missing, "email")
	}
	if isBlank(m.Phone) {
		missing = append(missing, "phone")
	}
	if isBlank(m.Department) {
		missing = append(missing, "department")
	}
	if m.YearOfStudy == nil || *m.YearOfStudy < MinYearOfStudy || *m.YearOfStudy > MaxYearOfStudy {
		missing = append(missing, "year_of_study")
	}
	if isBlank(m.RollNumber) {
		missing = append(missing, "roll_number")
	}
	return missing
}

func (m *Member) IsProfileComplete() bool {
	return len(m.MissingProfileFields()) == 0
}

func (m *Member) HasUniqueID() bool {
	return m.UniqueID != nil && *m.UniqueID != ""
}

func (m *Member) IsGuest() bool {
	return m.Role == MemberRoleGuest
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
