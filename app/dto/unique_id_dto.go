package dto

import "time"

type CounterStatusResponse struct {
	Backend       string     `json:"backend"`
	Name          string     `json:"name"`
	Count         int64      `json:"count"`
	LastGenerated *string    `json:"last_generated,omitempty"`
	NextPreview   string     `json:"next_preview"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Initialized   bool       `json:"initialized"`
}

type AssignUniqueIDResponse struct {
	MemberID        uint   `json:"member_id"`
	UniqueID        string `json:"unique_id"`
	AlreadyAssigned bool   `json:"already_assigned"`
}

type ReconcileResponse struct {
	Scanned  int      `json:"scanned"`
	Assigned int      `json:"assigned"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Orphaned []string `json:"orphaned,omitempty"`
}

// ExportMembersRequest filters the xlsx registry export
type ExportMembersRequest struct {
	OnlyAssigned bool    `query:"only_assigned"`
	Role         *string `query:"role" validate:"omitempty,oneof=member guest admin"`
}
