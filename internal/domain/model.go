package domain

import "time"

// BaseModel holds the columns shared by local tables. It stands in for
// gorm.Model so rows are hard-deleted.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest is a paging request against a local table. Sort uses the
// "field" or "-field" form.
type PageRequest struct {
	Page     int
	PageSize int
	Sort     string
	Filter   map[string]string
}
