package models

import "time"

// UniqueIDCounterName is the well-known counter record backing member unique IDs.
const UniqueIDCounterName = "uniqueIdCounter"

// SequenceCounter stores the issued count for a named monotonic counter.
type SequenceCounter struct {
	Name          string    `gorm:"primaryKey;size:64" json:"name"`
	Count         int64     `gorm:"not null;default:0" json:"count"`
	LastGenerated *string   `gorm:"size:64" json:"last_generated"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }

// Clone returns a deep copy so callers never share LastGenerated.
func (c *SequenceCounter) Clone() *SequenceCounter {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastGenerated != nil {
		v := *c.LastGenerated
		out.LastGenerated = &v
	}
	return &out
}
