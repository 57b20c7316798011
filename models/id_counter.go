package models

import "time"

// IDCounter holds the last allocated numeric suffix for one identifier
// prefix. Rows are locked FOR UPDATE by the allocator so concurrent
// allocations for the same prefix serialize on the database.
type IDCounter struct {
	Prefix     string    `gorm:"type:varchar(5);primaryKey" json:"prefix"`
	LastNumber int       `gorm:"not null;default:0" json:"last_number"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName keeps the legacy table name
func (IDCounter) TableName() string {
	return "id_counters"
}
