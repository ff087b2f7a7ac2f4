package model

import "time"

// Item represents one inventoried physical asset.
type Item struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	CategoryID   *int64     `json:"category_id,omitempty"`
	BrandID      *int64     `json:"brand_id,omitempty"`
	Model        string     `json:"model,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Location     string     `json:"location,omitempty"`
	Department   string     `json:"department,omitempty"`
	Status       string     `json:"status"`
	Quantity     int        `json:"quantity"`
	UnitPrice    *string    `json:"unit_price,omitempty"`
	RegisteredAt string     `json:"registered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Item statuses.
const (
	StatusOperational = "operational"
	StatusInRepair    = "in_repair"
	StatusRetired     = "retired"
	StatusStock       = "stock"
)

// Statuses lists every recognized item status.
var Statuses = []string{StatusOperational, StatusInRepair, StatusRetired, StatusStock}

// ValidStatus reports whether s is a recognized item status.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}
