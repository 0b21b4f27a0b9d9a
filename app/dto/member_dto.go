package dto

import "time"

// RegisterMemberRequest is the onboarding payload. Profile fields may be filled in later.
type RegisterMemberRequest struct {
	Email       string  `json:"email" validate:"required,email,max=255"`
	FullName    string  `json:"full_name" validate:"required,min=2,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,e164"`
	Department  *string `json:"department,omitempty" validate:"omitempty,min=2,max=120"`
	YearOfStudy *int    `json:"year_of_study,omitempty" validate:"omitempty,min=1,max=6"`
	RollNumber  *string `json:"roll_number,omitempty" validate:"omitempty,alphanum,max=40"`
	Guest       bool    `json:"guest"`
}

// UpdateProfileRequest is a partial update; nil fields are left unchanged
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,e164"`
	Department  *string `json:"department,omitempty" validate:"omitempty,min=2,max=120"`
	YearOfStudy *int    `json:"year_of_study,omitempty" validate:"omitempty,min=1,max=6"`
	RollNumber  *string `json:"roll_number,omitempty" validate:"omitempty,alphanum,max=40"`
}

type MemberProfileDTO struct {
	ID                 uint       `json:"id"`
	UUID               string     `json:"uuid"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	Phone              *string    `json:"phone,omitempty"`
	Department         *string    `json:"department,omitempty"`
	YearOfStudy        *int       `json:"year_of_study,omitempty"`
	RollNumber         *string    `json:"roll_number,omitempty"`
	Role               string     `json:"role"`
	IsActive           *bool      `json:"is_active"`
	UniqueID           *string    `json:"unique_id,omitempty"`
	UniqueIDAssignedAt *time.Time `json:"unique_id_assigned_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProfileStatusResponse is the result of a profile validation pass.
// IsComplete is only true once every required field is present and a unique ID is recorded.
type ProfileStatusResponse struct {
	Message         string           `json:"message"`
	Member          MemberProfileDTO `json:"member"`
	MissingFields   []string         `json:"missing_fields"`
	IsComplete      bool             `json:"is_complete"`
	UniqueIDPending bool             `json:"unique_id_pending"`
}
